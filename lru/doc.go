// Package lru implements a thread-safe bounded cache maintaining
// least-recently-used ordering, with optional per-entry expiry, insertion and
// removal callbacks, hit-rate statistics, dynamic resizing, and binary file
// persistence via caller-supplied codecs.
//
// A single reader-writer lock guards the structure. Get promotes the entry
// to most-recently-used, so it takes the exclusive side, using a
// non-blocking acquire: under contention it returns absent without counting
// a miss, rather than queueing behind writers. Callbacks are always invoked
// after the lock has been released.
package lru
