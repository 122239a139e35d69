// Package rescache implements a thread-safe bounded cache of resources
// keyed by string, with per-entry expiry deadlines, batch operations,
// insertion and removal callbacks, hit/miss statistics, and binary and JSON
// file persistence.
//
// Capacity eviction is by insertion order: the entry written longest ago is
// evicted first, regardless of how recently it was read (the cache does not
// track access order). Asynchronous variants of the read, insert, and load
// operations schedule on a bounded pool of worker goroutines and return
// futures from the sibling future package.
package rescache
