package rescache

import (
	"context"
	"time"

	"github.com/joeycumines/go-asynccache/future"
)

// Lookup is the result of an asynchronous read: the value, and whether the
// key held an unexpired entry.
type Lookup[V any] struct {
	Value V
	Found bool
}

// AsyncGet schedules a Get on a worker, returning a future for the result.
// Semantics (statistics, expiry removal, callbacks) are identical to Get.
func (x *Cache[V]) AsyncGet(key string) future.Future[Lookup[V]] {
	p := future.NewPromise[Lookup[V]]()
	go func() {
		if err := x.acquireWorker(); err != nil {
			_ = p.SetError(err)
			return
		}
		defer x.sem.Release(1)
		v, ok := x.Get(key)
		_ = p.SetValue(Lookup[V]{Value: v, Found: ok})
	}()
	return p.Future()
}

// AsyncInsert schedules an Insert on a worker, returning a future that
// resolves once the value is stored. Semantics are identical to Insert.
func (x *Cache[V]) AsyncInsert(key string, value V, ttl time.Duration) future.Future[struct{}] {
	p := future.NewPromise[struct{}]()
	go func() {
		if err := x.acquireWorker(); err != nil {
			_ = p.SetError(err)
			return
		}
		defer x.sem.Release(1)
		x.Insert(key, value, ttl)
		_ = p.SetValue(struct{}{})
	}()
	return p.Future()
}

// AsyncLoad runs loader on a worker and, on success, inserts the produced
// value under key. The expiry applied is the duration recorded by the most
// recent SetExpirationTime for key, else the cache's default TTL, else the
// entry never expires. A loader error (or panic, surfaced as a
// [future.PanicError]) propagates to the returned future, and nothing is
// inserted.
func (x *Cache[V]) AsyncLoad(key string, loader func() (V, error)) future.Future[struct{}] {
	if loader == nil {
		panic(`rescache: nil loader`)
	}
	p := future.NewPromise[struct{}]()
	go func() {
		if err := x.acquireWorker(); err != nil {
			_ = p.SetError(err)
			return
		}
		defer x.sem.Release(1)

		v, err := load(loader)
		if err != nil {
			x.logger.Debug().Err(err).Str(`key`, key).Log(`rescache: async load failed`)
			_ = p.SetError(err)
			return
		}
		x.Insert(key, v, x.ttlFor(key))
		_ = p.SetValue(struct{}{})
	}()
	return p.Future()
}

// ttlFor resolves the expiry duration AsyncLoad applies to key.
func (x *Cache[V]) ttlFor(key string) time.Duration {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if ttl, ok := x.loadTTL[key]; ok {
		return ttl
	}
	return x.defaultTTL
}

func (x *Cache[V]) acquireWorker() error {
	return x.sem.Acquire(context.Background(), 1)
}

// load invokes loader, converting a panic into a [future.PanicError].
func load[V any](loader func() (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = future.PanicError{Value: r}
		}
	}()
	return loader()
}
