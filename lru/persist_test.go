package lru

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_saveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), `cache.bin`)
	codec := StringCodec()

	c := New[string, string](8)
	c.Put(`a`, `1`, 0)
	c.Put(`b`, `2`, 0)
	c.Put(`c`, `3`, 0)
	c.Get(`a`) // order: a, c, b
	wantKeys := c.Keys()

	require.NoError(t, c.SaveToFile(path, codec))
	c.Clear()
	require.Equal(t, 0, c.Size())
	require.NoError(t, c.LoadFromFile(path, codec))

	if diff := cmp.Diff(wantKeys, c.Keys()); diff != "" {
		t.Errorf(`order not preserved (-want +got):%s`, diff)
	}
	for key, want := range map[string]string{`a`: `1`, `b`: `2`, `c`: `3`} {
		v, ok := c.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, want, v)
	}
}

func TestCache_load_entriesNeverExpire(t *testing.T) {
	now := stubClock(t)
	path := filepath.Join(t.TempDir(), `cache.bin`)
	codec := StringCodec()

	c := New[string, string](8)
	c.Put(`a`, `1`, time.Second)
	require.NoError(t, c.SaveToFile(path, codec))
	require.NoError(t, c.LoadFromFile(path, codec))

	*now = now.Add(time.Hour)
	_, ok := c.Get(`a`)
	assert.True(t, ok, `expiry is not persisted; loaded entries never expire`)
}

func TestCache_load_replacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), `cache.bin`)
	codec := StringCodec()

	c := New[string, string](8)
	c.Put(`a`, `1`, 0)
	require.NoError(t, c.SaveToFile(path, codec))

	c.Clear()
	c.Put(`other`, `x`, 0)
	require.NoError(t, c.LoadFromFile(path, codec))

	_, ok := c.Get(`other`)
	assert.False(t, ok, `load replaces, not merges`)
	v, ok := c.Get(`a`)
	require.True(t, ok)
	assert.Equal(t, `1`, v)
}

func TestCache_load_respectsMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), `cache.bin`)
	codec := StringCodec()

	c := New[string, string](8)
	c.Put(`a`, `1`, 0)
	c.Put(`b`, `2`, 0)
	c.Put(`c`, `3`, 0)
	require.NoError(t, c.SaveToFile(path, codec))

	small := New[string, string](2)
	require.NoError(t, small.LoadFromFile(path, codec))
	assert.Equal(t, 2, small.Size())

	// the most-recently-used entries win
	if diff := cmp.Diff([]string{`c`, `b`}, small.Keys()); diff != "" {
		t.Errorf(`unexpected keys (-want +got):%s`, diff)
	}
}

func TestCache_save_busy(t *testing.T) {
	path := filepath.Join(t.TempDir(), `cache.bin`)
	c := New[string, string](8)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.ErrorIs(t, c.SaveToFile(path, StringCodec()), ErrBusy)
}

func TestCache_load_busy_readsFileFirst(t *testing.T) {
	// the file must exist for the lock to even be attempted
	path := filepath.Join(t.TempDir(), `cache.bin`)
	c := New[string, string](8)
	c.Put(`a`, `1`, 0)
	require.NoError(t, c.SaveToFile(path, StringCodec()))

	c.mu.Lock()
	err := c.LoadFromFile(path, StringCodec())
	c.mu.Unlock()
	assert.ErrorIs(t, err, ErrBusy)

	v, ok := c.Get(`a`)
	require.True(t, ok)
	assert.Equal(t, `1`, v, `a busy load leaves the cache untouched`)
}

func TestCache_save_serializerFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), `cache.bin`)
	sentinel := errors.New(`encode failed`)

	codec := StringCodec()
	codec.EncodeValue = func(string) ([]byte, error) { return nil, sentinel }

	c := New[string, string](8)
	c.Put(`a`, `1`, 0)

	err := c.SaveToFile(path, codec)
	assert.ErrorIs(t, err, ErrSerializer)
	assert.ErrorIs(t, err, sentinel)
}

func TestCache_load_deserializerFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), `cache.bin`)
	sentinel := errors.New(`decode failed`)

	c := New[string, string](8)
	c.Put(`a`, `1`, 0)
	require.NoError(t, c.SaveToFile(path, StringCodec()))
	c.Put(`b`, `2`, 0)

	codec := StringCodec()
	codec.DecodeValue = func([]byte) (string, error) { return ``, sentinel }
	err := c.LoadFromFile(path, codec)
	assert.ErrorIs(t, err, ErrSerializer)
	assert.ErrorIs(t, err, sentinel)

	assert.Equal(t, 2, c.Size(), `a failed load leaves the cache untouched`)
}

func TestCache_load_missingFile(t *testing.T) {
	c := New[string, string](8)
	c.Put(`a`, `1`, 0)

	err := c.LoadFromFile(filepath.Join(t.TempDir(), `missing.bin`), StringCodec())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, c.Size())
}

func TestCache_load_truncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), `cache.bin`)
	codec := StringCodec()

	c := New[string, string](8)
	c.Put(`a`, `1`, 0)
	require.NoError(t, c.SaveToFile(path, codec))

	// truncate the snapshot mid-entry
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf[:len(buf)-1], 0o644))

	err = c.LoadFromFile(path, codec)
	require.Error(t, err)
	assert.Equal(t, 1, c.Size())
}

func TestCache_save_incompleteCodec(t *testing.T) {
	c := New[string, string](8)
	err := c.SaveToFile(filepath.Join(t.TempDir(), `cache.bin`), Codec[string, string]{})
	assert.ErrorIs(t, err, ErrSerializer)
	err = c.LoadFromFile(filepath.Join(t.TempDir(), `cache.bin`), Codec[string, string]{})
	assert.ErrorIs(t, err, ErrSerializer)
}

func TestCache_save_emptyCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), `cache.bin`)
	codec := StringCodec()

	c := New[string, string](8)
	require.NoError(t, c.SaveToFile(path, codec))

	c.Put(`a`, `1`, 0)
	require.NoError(t, c.LoadFromFile(path, codec))
	assert.Equal(t, 0, c.Size())
}
