package ttl

import (
	"bytes"
	"runtime"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkNumGoroutines polls until the goroutine count returns to its starting
// value, or the timeout elapses.
func checkNumGoroutines(timeout time.Duration) func(t *testing.T) {
	start := runtime.NumGoroutine()
	return func(t *testing.T) {
		t.Helper()
		deadline := time.Now().Add(timeout)
		for runtime.NumGoroutine() > start {
			if time.Now().After(deadline) {
				t.Errorf(`goroutine leak: started with %d, have %d`, start, runtime.NumGoroutine())
				return
			}
			time.Sleep(time.Millisecond)
		}
	}
}

// stubClock replaces the package clock with a manually-advanced one.
func stubClock(t *testing.T) *time.Time {
	t.Helper()
	now := time.Unix(1000, 0)
	old := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = old })
	return &now
}

func TestCache_putGet(t *testing.T) {
	c := New[string, int](time.Minute, 4)
	defer c.Close()

	c.Put(`a`, 1)
	v, ok := c.Get(`a`)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get(`missing`)
	assert.False(t, ok)
}

func TestCache_sweep(t *testing.T) {
	// short TTL: every entry expires, and cleanup empties the cache
	defer checkNumGoroutines(3 * time.Second)(t)

	c := New[string, int](100*time.Millisecond, 3)
	defer c.Close()

	c.Put(`a`, 1)
	c.Put(`b`, 2)
	c.Put(`c`, 3)

	time.Sleep(250 * time.Millisecond)
	c.Cleanup()

	assert.Equal(t, 0, c.Size())
	assert.Zero(t, c.HitRate())
}

func TestCache_lruEviction(t *testing.T) {
	// scenario: get(a) promotes it, so put(c) evicts b
	c := New[string, int](5*time.Second, 2)
	defer c.Close()

	c.Put(`a`, 1)
	c.Put(`b`, 2)

	v, ok := c.Get(`a`)
	require.True(t, ok)
	require.Equal(t, 1, v)

	c.Put(`c`, 3)

	_, ok = c.Get(`b`)
	assert.False(t, ok)
	v, _ = c.Get(`a`)
	assert.Equal(t, 1, v)
	v, _ = c.Get(`c`)
	assert.Equal(t, 3, v)

	// 3 hits (a, a, c), 1 miss (b)
	assert.InDelta(t, 3.0/4.0, c.HitRate(), 1e-6)
}

func TestCache_hitRate(t *testing.T) {
	c := New[string, int](time.Minute, 4)
	defer c.Close()

	assert.Zero(t, c.HitRate())
	c.Put(`a`, 1)
	c.Get(`a`)
	c.Get(`a`)
	c.Get(`missing`)
	assert.InDelta(t, 2.0/3.0, c.HitRate(), 1e-6)
}

func TestCache_zeroTTL(t *testing.T) {
	c := New[string, int](0, 4)
	defer c.Close()

	c.Put(`a`, 1)
	_, ok := c.Get(`a`)
	assert.False(t, ok, `a zero TTL expires entries immediately`)
}

func TestCache_negativeTTL(t *testing.T) {
	c := New[string, int](-time.Second, 4)
	defer c.Close()

	c.Put(`a`, 1)
	_, ok := c.Get(`a`)
	assert.False(t, ok)
}

func TestCache_zeroCapacity(t *testing.T) {
	c := New[string, int](time.Minute, 0)
	defer c.Close()

	c.Put(`a`, 1)
	assert.Equal(t, 0, c.Size(), `put is a no-op at capacity 0`)
}

func TestCache_putReplaces(t *testing.T) {
	now := stubClock(t)

	c := New[string, int](time.Minute, 2)
	defer c.Close()

	c.Put(`a`, 1)
	*now = now.Add(50 * time.Second)
	c.Put(`a`, 2)
	*now = now.Add(30 * time.Second)

	v, ok := c.Get(`a`)
	require.True(t, ok, `replacement refreshed the expiry`)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Size())
}

func TestCache_getDoesNotRemoveExpired(t *testing.T) {
	now := stubClock(t)

	c := New[string, int](time.Minute, 4)
	defer c.Close()

	c.Put(`a`, 1)
	*now = now.Add(2 * time.Minute)

	_, ok := c.Get(`a`)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size(), `expired entries are left for the sweeper`)

	c.Cleanup()
	assert.Equal(t, 0, c.Size())
}

func TestCache_cleanup_stopsAtFirstUnexpired(t *testing.T) {
	now := stubClock(t)

	c := New[string, int](time.Minute, 4)
	defer c.Close()

	c.Put(`old`, 1)
	*now = now.Add(59 * time.Second)
	c.Put(`fresh`, 2)

	// old is past its deadline, fresh is not
	*now = now.Add(2 * time.Second)
	c.Cleanup()

	assert.Equal(t, 1, c.Size())
	_, ok := c.Get(`fresh`)
	assert.True(t, ok)
}

func TestCache_cleanup_idempotent(t *testing.T) {
	now := stubClock(t)

	c := New[string, int](time.Minute, 4)
	defer c.Close()

	c.Put(`a`, 1)
	c.Put(`b`, 2)
	*now = now.Add(2 * time.Minute)

	c.Cleanup()
	size := c.Size()
	c.Cleanup()
	assert.Equal(t, size, c.Size())
	assert.Equal(t, 0, size)
}

func TestCache_clear_resetsCounters(t *testing.T) {
	c := New[string, int](time.Minute, 4)
	defer c.Close()

	c.Put(`a`, 1)
	c.Get(`a`)
	c.Get(`missing`)
	c.Clear()

	assert.Equal(t, 0, c.Size())
	assert.Zero(t, c.HitRate(), `clear resets the hit and miss counters`)
}

func TestCache_close(t *testing.T) {
	check := checkNumGoroutines(3 * time.Second)

	c := New[string, int](10*time.Millisecond, 4)
	c.Put(`a`, 1)
	c.Close()
	c.Close() // idempotent

	check(t)

	// still usable, just unswept
	c.Put(`b`, 2)
	v, ok := c.Get(`b`)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCache_backgroundSweeper(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithTimeField(``), stumpy.WithWriter(&buf)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()

	c := New[string, int](50*time.Millisecond, 4, WithLogger(logger))

	c.Put(`a`, 1)
	c.Put(`b`, 2)

	require.Eventually(t, func() bool { return c.Size() == 0 }, 3*time.Second, 10*time.Millisecond,
		`the sweeper must remove expired entries without an explicit Cleanup`)

	// join the sweeper before inspecting its log output
	c.Close()
	assert.Contains(t, buf.String(), `swept expired entries`)
}
