package future

import (
	"time"
)

// Future is a shareable, read-only view of a single-assignment result. The
// zero value is invalid; futures are obtained from [Promise.Future],
// [Task.Future], or the package-level constructors ([Go], [Resolve], [Fail],
// [Delay]).
//
// Futures are safe for concurrent use, and may be copied freely; all copies
// observe the same shared state.
type Future[T any] struct {
	s *state[T]
}

// Wait blocks until the future settles, returning the value, or the error
// outcome. A cancelled future yields [ErrCancelled]; the zero future yields
// [ErrInvalidFuture].
func (x Future[T]) Wait() (T, error) {
	if x.s == nil {
		var zero T
		return zero, ErrInvalidFuture
	}
	<-x.s.done
	return x.s.outcome()
}

// WaitFor blocks for at most d, returning the value on settlement. If the
// timeout elapses first, the future is cancelled, and [ErrTimeout] is
// returned.
func (x Future[T]) WaitFor(d time.Duration) (T, error) {
	if x.s == nil {
		var zero T
		return zero, ErrInvalidFuture
	}

	select {
	case <-x.s.done:
		return x.s.outcome()
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-x.s.done:
		return x.s.outcome()
	case <-timer.C:
		x.s.cancel()
		var zero T
		return zero, ErrTimeout
	}
}

// Done returns true if the future has settled with a value, an error, or
// cancellation.
func (x Future[T]) Done() bool {
	if x.s == nil {
		return false
	}
	select {
	case <-x.s.done:
		return true
	default:
		return false
	}
}

// Ready is an alias for [Future.Done].
func (x Future[T]) Ready() bool { return x.Done() }

// Cancelled returns true if the future has been cancelled.
func (x Future[T]) Cancelled() bool {
	if x.s == nil {
		return false
	}
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	return x.s.cancelled
}

// Cancel requests cancellation. Waiters observe [ErrCancelled], and
// callbacks registered after cancellation are discarded. Cancellation is
// cooperative: a continuation already executing runs to completion, but its
// result is discarded. Cancelling a settled future has no effect.
func (x Future[T]) Cancel() {
	if x.s != nil {
		x.s.cancel()
	}
}

// Err returns the error outcome if the future has settled with one, or nil
// if it is pending or settled with a value. It does not block.
func (x Future[T]) Err() error {
	if x.s == nil {
		return ErrInvalidFuture
	}
	select {
	case <-x.s.done:
	default:
		return nil
	}
	x.s.mu.Lock()
	defer x.s.mu.Unlock()
	if x.s.cancelled && x.s.err == nil {
		return ErrCancelled
	}
	return x.s.err
}

// OnComplete registers fn to run with the value when (and only if) the
// future settles successfully. Callbacks run in registration order. If the
// future is already settled with a value, fn runs immediately on the calling
// goroutine; otherwise it runs on the settling goroutine, after the shared
// state's lock has been released. Registration after cancellation or failure
// is a no-op.
func (x Future[T]) OnComplete(fn func(T)) {
	if x.s != nil && fn != nil {
		x.s.onComplete(fn)
	}
}

// Resolve returns a future already settled with v.
func Resolve[T any](v T) Future[T] {
	s := newState[T]()
	_ = s.setValue(v)
	return Future[T]{s: s}
}

// Fail returns a future already settled with err.
func Fail[T any](err error) Future[T] {
	s := newState[T]()
	_ = s.setError(err)
	return Future[T]{s: s}
}

// Go runs fn on a new goroutine, returning a future for its result. A panic
// in fn settles the future with a [PanicError].
func Go[R any](fn func() (R, error)) Future[R] {
	if fn == nil {
		panic(`future: nil function`)
	}
	s := newState[R]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				_ = s.setError(PanicError{Value: r})
			}
		}()
		v, err := fn()
		if err != nil {
			_ = s.setError(err)
		} else {
			_ = s.setValue(v)
		}
	}()
	return Future[R]{s: s}
}

// Delay returns a future that resolves with the current time after d has
// elapsed. Cancelling it first settles it as cancelled, with no value, and
// stops the timer.
func Delay(d time.Duration) Future[time.Time] {
	s := newState[time.Time]()
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case t := <-timer.C:
			_ = s.setValue(t)
		case <-s.done:
		}
	}()
	return Future[time.Time]{s: s}
}
