package lru

import (
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// for testing purposes
var timeNow = time.Now

// Cache is a thread-safe bounded mapping maintaining least-recently-used
// ordering. Instances must be created with New.
//
// Both Get (hit) and Put promote the affected entry to most-recently-used.
// Internal sweeps, PopLRU, and Resize evictions do not count as use.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	entries  map[K]*node[K, V]
	list     list[K, V]
	maxSize  int
	hits     uint64
	misses   uint64
	onInsert func(K, V)
	onErase  func(K)
	onClear  func()
	logger   *logiface.Logger[logiface.Event]
}

// New initializes a Cache holding at most maxSize entries. Panics if
// maxSize < 1.
func New[K comparable, V any](maxSize int, opts ...Option) *Cache[K, V] {
	if maxSize < 1 {
		panic(`lru: max size must be positive`)
	}
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return &Cache[K, V]{
		entries: make(map[K]*node[K, V]),
		maxSize: maxSize,
		logger:  c.logger,
	}
}

// Get returns the value for key, promoting the entry to most-recently-used
// and counting a hit. A missing key counts a miss; an expired entry counts a
// miss, is removed, and fires the erase callback. Get uses a non-blocking
// lock acquire: under contention it returns absent without counting a miss.
func (x *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	if !x.mu.TryLock() {
		return zero, false
	}

	n, ok := x.entries[key]
	if !ok {
		x.misses++
		x.mu.Unlock()
		return zero, false
	}
	if expired(n.expiry) {
		x.misses++
		x.removeLocked(n)
		onErase := x.onErase
		x.mu.Unlock()
		x.fireErase(onErase, key)
		return zero, false
	}
	x.hits++
	x.list.moveToFront(n)
	v := n.value
	x.mu.Unlock()
	return v, true
}

// Put inserts or updates the entry for key, promoting it to
// most-recently-used. A ttl > 0 sets the expiry deadline to now + ttl;
// ttl <= 0 means the entry never expires. If inserting grows the cache
// beyond its maximum size, the least-recently-used entry is evicted, firing
// the erase callback. The insert callback always fires with the new value.
func (x *Cache[K, V]) Put(key K, value V, ttl time.Duration) {
	var expiry time.Time
	if ttl > 0 {
		expiry = timeNow().Add(ttl)
	}

	x.mu.Lock()
	var (
		evicted    bool
		evictedKey K
	)
	if n, ok := x.entries[key]; ok {
		x.list.moveToFront(n)
		n.value = value
		n.expiry = expiry
	} else {
		n := &node[K, V]{key: key, value: value, expiry: expiry}
		x.entries[key] = n
		x.list.pushFront(n)
		if len(x.entries) > x.maxSize {
			last := x.list.back
			evicted, evictedKey = true, last.key
			x.removeLocked(last)
		}
	}
	onInsert, onErase := x.onInsert, x.onErase
	x.mu.Unlock()

	if evicted {
		x.fireErase(onErase, evictedKey)
	}
	x.fireInsert(onInsert, key, value)
}

// Erase removes the entry for key, if present, firing the erase callback.
func (x *Cache[K, V]) Erase(key K) {
	x.mu.Lock()
	n, ok := x.entries[key]
	if ok {
		x.removeLocked(n)
	}
	onErase := x.onErase
	x.mu.Unlock()
	if ok {
		x.fireErase(onErase, key)
	}
}

// Clear drops all entries and fires the clear callback. Hit and miss
// counters are retained.
func (x *Cache[K, V]) Clear() {
	x.mu.Lock()
	x.entries = make(map[K]*node[K, V])
	x.list = list[K, V]{}
	onClear := x.onClear
	x.mu.Unlock()
	x.fireClear(onClear)
}

// Keys returns a snapshot of all keys, most-recently-used first.
func (x *Cache[K, V]) Keys() []K {
	x.mu.RLock()
	defer x.mu.RUnlock()
	keys := make([]K, 0, len(x.entries))
	for n := x.list.front; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// PopLRU removes and returns the least-recently-used entry. No callback
// fires. Returns false on an empty cache.
func (x *Cache[K, V]) PopLRU() (K, V, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	last := x.list.back
	if last == nil {
		var (
			zeroK K
			zeroV V
		)
		return zeroK, zeroV, false
	}
	x.removeLocked(last)
	return last.key, last.value, true
}

// Resize changes the maximum size. Shrinking evicts from the
// least-recently-used end until the cache fits, firing the erase callback
// per evicted entry; growing simply raises the cap. Panics if newMaxSize is
// negative.
func (x *Cache[K, V]) Resize(newMaxSize int) {
	if newMaxSize < 0 {
		panic(`lru: max size must not be negative`)
	}
	x.mu.Lock()
	x.maxSize = newMaxSize
	var evicted []K
	for len(x.entries) > x.maxSize {
		last := x.list.back
		evicted = append(evicted, last.key)
		x.removeLocked(last)
	}
	onErase := x.onErase
	x.mu.Unlock()
	for _, key := range evicted {
		x.fireErase(onErase, key)
	}
}

// Size returns the number of entries currently in the cache.
func (x *Cache[K, V]) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// LoadFactor returns the ratio of the current size to the maximum size.
func (x *Cache[K, V]) LoadFactor() float32 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.maxSize == 0 {
		return 0
	}
	return float32(len(x.entries)) / float32(x.maxSize)
}

// HitRate returns hits / (hits + misses), or 0 before any access.
func (x *Cache[K, V]) HitRate() float32 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	total := x.hits + x.misses
	if total == 0 {
		return 0
	}
	return float32(float64(x.hits) / float64(total))
}

// SetInsertCallback registers fn to be called with the key and value after
// every insert or update. A later registration replaces the earlier one;
// nil unregisters.
func (x *Cache[K, V]) SetInsertCallback(fn func(key K, value V)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.onInsert = fn
}

// SetEraseCallback registers fn to be called with the key after every
// removal (erase, expiry on access, or capacity eviction). A later
// registration replaces the earlier one; nil unregisters.
func (x *Cache[K, V]) SetEraseCallback(fn func(key K)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.onErase = fn
}

// SetClearCallback registers fn to be called after Clear. A later
// registration replaces the earlier one; nil unregisters.
func (x *Cache[K, V]) SetClearCallback(fn func()) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.onClear = fn
}

// removeLocked unlinks n from both the list and the map. Callers must hold
// the exclusive lock, and dispatch any callbacks after releasing it.
func (x *Cache[K, V]) removeLocked(n *node[K, V]) {
	x.list.remove(n)
	delete(x.entries, n.key)
}

func (x *Cache[K, V]) fireInsert(fn func(K, V), key K, value V) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			x.logger.Debug().Interface(`recovered`, r).Log(`lru: insert callback panicked`)
		}
	}()
	fn(key, value)
}

func (x *Cache[K, V]) fireErase(fn func(K), key K) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			x.logger.Debug().Interface(`recovered`, r).Log(`lru: erase callback panicked`)
		}
	}()
	fn(key)
}

func (x *Cache[K, V]) fireClear(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			x.logger.Debug().Interface(`recovered`, r).Log(`lru: clear callback panicked`)
		}
	}()
	fn()
}

func expired(expiry time.Time) bool {
	return !expiry.IsZero() && timeNow().After(expiry)
}
