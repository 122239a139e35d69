package future

import (
	"sync/atomic"
)

// Task bundles a callable with a promise for its result: a packaged task.
// Invoking the task runs the callable and settles the promise with its
// outcome. Instances must be created with [NewTask].
type Task[R, A any] struct {
	fn        func(A) (R, error)
	s         *state[R]
	cancelled atomic.Bool
}

// NewTask wraps fn as a packaged task. Panics if fn is nil.
func NewTask[R, A any](fn func(A) (R, error)) *Task[R, A] {
	if fn == nil {
		panic(`future: nil function`)
	}
	return &Task[R, A]{fn: fn, s: newState[R]()}
}

// Future returns the future associated with this task's result.
func (x *Task[R, A]) Future() Future[R] {
	return Future[R]{s: x.s}
}

// Invoke runs the callable with arg, settling the task's promise with the
// returned value, the returned error, or a [PanicError] if the callable
// panics. If the task was cancelled before invocation, the promise settles
// with [ErrCancelled] and the callable does not run. Only the first
// invocation settles; later invocations still run the callable, but their
// outcomes are discarded.
func (x *Task[R, A]) Invoke(arg A) {
	if x.cancelled.Load() {
		_ = x.s.setError(ErrCancelled)
		return
	}
	settleWith(x.s, x.fn, arg)
}

// OnComplete registers fn to run with the produced value on successful
// completion, with the semantics of [Future.OnComplete].
func (x *Task[R, A]) OnComplete(fn func(R)) {
	if fn != nil {
		x.s.onComplete(fn)
	}
}

// Cancel marks the task cancelled; subsequent invocations short-circuit.
// A completed task is unaffected.
func (x *Task[R, A]) Cancel() {
	x.cancelled.Store(true)
}

// Cancelled returns true if [Task.Cancel] has been called.
func (x *Task[R, A]) Cancelled() bool {
	return x.cancelled.Load()
}
