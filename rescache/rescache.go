package rescache

import (
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/sync/semaphore"
)

// for testing purposes
var timeNow = time.Now

// Item is a key-value pair, for InsertBatch.
type Item[V any] struct {
	Key   string
	Value V
}

// entry holds a cached value, its expiry deadline (zero means never), and
// its insertion sequence number, which orders eviction.
type entry[V any] struct {
	value  V
	expiry time.Time
	seq    uint64
}

// Cache is a thread-safe bounded cache of values keyed by string. Instances
// must be created with New.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]*entry[V]
	loadTTL    map[string]time.Duration
	maxSize    int
	defaultTTL time.Duration
	seq        uint64
	hits       uint64
	misses     uint64
	onInsert   func(string, V)
	onRemove   func(string)
	sem        *semaphore.Weighted
	logger     *logiface.Logger[logiface.Event]
}

// New initializes a Cache holding at most maxSize entries. Panics if
// maxSize < 1.
func New[V any](maxSize int, opts ...Option) *Cache[V] {
	if maxSize < 1 {
		panic(`rescache: max size must be positive`)
	}
	c := config{asyncWorkers: defaultAsyncWorkers}
	for _, opt := range opts {
		opt(&c)
	}
	return &Cache[V]{
		entries:    make(map[string]*entry[V]),
		loadTTL:    make(map[string]time.Duration),
		maxSize:    maxSize,
		defaultTTL: c.defaultTTL,
		sem:        semaphore.NewWeighted(c.asyncWorkers),
		logger:     c.logger,
	}
}

// Insert stores value under key, replacing any existing entry. A ttl > 0
// expires the entry that long from now; ttl <= 0 means it never expires. If
// inserting a new key would exceed the maximum size, the oldest entry (by
// insertion time) is evicted first. The insert callback fires with the key
// and value.
func (x *Cache[V]) Insert(key string, value V, ttl time.Duration) {
	x.mu.Lock()
	evicted := x.insertLocked(key, value, ttl)
	onInsert, onRemove := x.onInsert, x.onRemove
	x.mu.Unlock()

	for _, k := range evicted {
		x.fireRemove(onRemove, k)
	}
	x.fireInsert(onInsert, key, value)
}

// Contains returns true if key holds an unexpired entry. An expired entry
// is removed (firing the remove callback) and reported absent. Contains
// does not affect the hit/miss statistics.
func (x *Cache[V]) Contains(key string) bool {
	x.mu.Lock()
	e, ok := x.entries[key]
	if !ok {
		x.mu.Unlock()
		return false
	}
	if expired(e.expiry) {
		delete(x.entries, key)
		onRemove := x.onRemove
		x.mu.Unlock()
		x.fireRemove(onRemove, key)
		return false
	}
	x.mu.Unlock()
	return true
}

// Get returns the value for key, counting a hit. A missing key counts a
// miss; an expired entry counts a miss, is removed, and fires the remove
// callback.
func (x *Cache[V]) Get(key string) (V, bool) {
	var zero V

	x.mu.Lock()
	e, ok := x.entries[key]
	if !ok {
		x.misses++
		x.mu.Unlock()
		return zero, false
	}
	if expired(e.expiry) {
		x.misses++
		delete(x.entries, key)
		onRemove := x.onRemove
		x.mu.Unlock()
		x.fireRemove(onRemove, key)
		return zero, false
	}
	x.hits++
	v := e.value
	x.mu.Unlock()
	return v, true
}

// Remove deletes the entry for key, if present, firing the remove callback.
func (x *Cache[V]) Remove(key string) {
	x.mu.Lock()
	_, ok := x.entries[key]
	if ok {
		delete(x.entries, key)
	}
	onRemove := x.onRemove
	x.mu.Unlock()
	if ok {
		x.fireRemove(onRemove, key)
	}
}

// Clear drops all entries and recorded per-key load durations. Statistics
// are retained. No callbacks fire.
func (x *Cache[V]) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = make(map[string]*entry[V])
	x.loadTTL = make(map[string]time.Duration)
}

// Size returns the number of entries currently in the cache.
func (x *Cache[V]) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Empty returns true if the cache holds no entries.
func (x *Cache[V]) Empty() bool {
	return x.Size() == 0
}

// EvictOldest removes the entry with the earliest insertion time, if any,
// firing the remove callback. Note that insertion time, not access time,
// orders eviction: a recently-read entry may still be the oldest.
func (x *Cache[V]) EvictOldest() {
	x.mu.Lock()
	key, ok := x.evictOldestLocked()
	onRemove := x.onRemove
	x.mu.Unlock()
	if ok {
		x.fireRemove(onRemove, key)
	}
}

// IsExpired returns true if key holds an entry whose deadline has passed.
// The entry is not removed. A missing key reports false.
func (x *Cache[V]) IsExpired(key string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[key]
	return ok && expired(e.expiry)
}

// SetMaxSize changes the maximum size, evicting oldest-first until the
// cache fits. Panics if maxSize < 1.
func (x *Cache[V]) SetMaxSize(maxSize int) {
	if maxSize < 1 {
		panic(`rescache: max size must be positive`)
	}
	x.mu.Lock()
	x.maxSize = maxSize
	var evicted []string
	for len(x.entries) > x.maxSize {
		key, ok := x.evictOldestLocked()
		if !ok {
			break
		}
		evicted = append(evicted, key)
	}
	onRemove := x.onRemove
	x.mu.Unlock()
	for _, key := range evicted {
		x.fireRemove(onRemove, key)
	}
}

// SetExpirationTime resets key's expiry deadline to now + ttl, and records
// ttl as the duration AsyncLoad will apply to future loads of key. A
// ttl <= 0 marks the entry as never expiring.
func (x *Cache[V]) SetExpirationTime(key string, ttl time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.loadTTL[key] = ttl
	if e, ok := x.entries[key]; ok {
		e.expiry = deadline(ttl)
	}
}

// RemoveExpired removes every entry whose deadline has passed, firing the
// remove callback for each.
func (x *Cache[V]) RemoveExpired() {
	x.mu.Lock()
	var removed []string
	for key, e := range x.entries {
		if expired(e.expiry) {
			delete(x.entries, key)
			removed = append(removed, key)
		}
	}
	onRemove := x.onRemove
	x.mu.Unlock()
	for _, key := range removed {
		x.fireRemove(onRemove, key)
	}
}

// InsertBatch stores every item, in order, under a single exclusive
// section, applying the same ttl to each. The insert callback fires per
// item (after the lock is released); capacity evictions fire the remove
// callback.
func (x *Cache[V]) InsertBatch(items []Item[V], ttl time.Duration) {
	x.mu.Lock()
	var evicted []string
	for _, item := range items {
		evicted = append(evicted, x.insertLocked(item.Key, item.Value, ttl)...)
	}
	onInsert, onRemove := x.onInsert, x.onRemove
	x.mu.Unlock()

	for _, key := range evicted {
		x.fireRemove(onRemove, key)
	}
	for _, item := range items {
		x.fireInsert(onInsert, item.Key, item.Value)
	}
}

// RemoveBatch deletes every named entry under a single exclusive section,
// firing the remove callback per removed entry. Absent keys are ignored.
func (x *Cache[V]) RemoveBatch(keys []string) {
	x.mu.Lock()
	var removed []string
	for _, key := range keys {
		if _, ok := x.entries[key]; ok {
			delete(x.entries, key)
			removed = append(removed, key)
		}
	}
	onRemove := x.onRemove
	x.mu.Unlock()
	for _, key := range removed {
		x.fireRemove(onRemove, key)
	}
}

// OnInsert registers fn to be called with the key and value after every
// insertion. A later registration replaces the earlier one; nil
// unregisters.
func (x *Cache[V]) OnInsert(fn func(key string, value V)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.onInsert = fn
}

// OnRemove registers fn to be called with the key after every removal. A
// later registration replaces the earlier one; nil unregisters.
func (x *Cache[V]) OnRemove(fn func(key string)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.onRemove = fn
}

// Statistics returns the hit and miss counters. Both count Get (and
// AsyncGet) accesses only.
func (x *Cache[V]) Statistics() (hits, misses uint64) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.hits, x.misses
}

// insertLocked stores value under key, evicting oldest-first to make room
// for a new key, and returns the evicted keys. Callers must hold the
// exclusive lock, and dispatch callbacks after releasing it.
func (x *Cache[V]) insertLocked(key string, value V, ttl time.Duration) (evicted []string) {
	if _, ok := x.entries[key]; !ok {
		for len(x.entries) >= x.maxSize {
			k, ok := x.evictOldestLocked()
			if !ok {
				break
			}
			evicted = append(evicted, k)
		}
	}
	x.seq++
	x.entries[key] = &entry[V]{value: value, expiry: deadline(ttl), seq: x.seq}
	return evicted
}

func (x *Cache[V]) evictOldestLocked() (string, bool) {
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for key, e := range x.entries {
		if !found || e.seq < oldestSeq {
			oldestKey, oldestSeq, found = key, e.seq, true
		}
	}
	if found {
		delete(x.entries, oldestKey)
	}
	return oldestKey, found
}

func (x *Cache[V]) fireInsert(fn func(string, V), key string, value V) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			x.logger.Debug().Interface(`recovered`, r).Str(`key`, key).Log(`rescache: insert callback panicked`)
		}
	}()
	fn(key, value)
}

func (x *Cache[V]) fireRemove(fn func(string), key string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			x.logger.Debug().Interface(`recovered`, r).Str(`key`, key).Log(`rescache: remove callback panicked`)
		}
	}()
	fn(key)
}

func deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return timeNow().Add(ttl)
}

func expired(expiry time.Time) bool {
	return !expiry.IsZero() && timeNow().After(expiry)
}
