// Package ttl implements a thread-safe bounded cache in which every entry
// expires a fixed duration after it was written. Capacity pressure evicts
// the least-recently-used entry, and a background sweeper removes expired
// entries from the least-recently-used end on an interval equal to the TTL,
// with a floor of one millisecond.
//
// The sweeper goroutine is owned by the cache: Close signals it, wakes it,
// and joins it. Failing to call Close leaks the goroutine.
package ttl
