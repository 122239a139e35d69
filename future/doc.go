// Package future implements single-assignment asynchronous value channels:
// a [Promise] produces at most one value or error, and its [Future] is a
// shareable consumer handle supporting blocking and timed waits, completion
// callbacks, cancellation, continuation chaining, and combinators.
//
// The shared state is the only allocation; a promise and any number of
// futures reference it, and reads never consume the value. Packaged tasks
// ([Task]) bundle a callable with a promise, settling it on invocation.
//
// Failures are ordinary Go errors. A callable that panics settles the
// associated promise with a [PanicError] wrapping the recovered value.
package future
