package future

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFuture indicates an operation on a future or promise whose
	// shared state was never populated, e.g. the zero value.
	ErrInvalidFuture = errors.New(`future: invalid future`)

	// ErrCancelled is the outcome observed by waiters of a cancelled future,
	// and the settlement of a task invoked after cancellation.
	ErrCancelled = errors.New(`future: cancelled`)

	// ErrPromiseCancelled is returned by [Promise.SetValue] and
	// [Promise.SetError] after the promise has been cancelled.
	ErrPromiseCancelled = errors.New(`future: promise cancelled`)

	// ErrAlreadySettled is returned on an attempt to settle a promise a
	// second time.
	ErrAlreadySettled = errors.New(`future: already settled`)

	// ErrTimeout is returned by [Future.WaitFor] when the duration elapses
	// before settlement. The future is cancelled as a side effect.
	ErrTimeout = errors.New(`future: timeout`)
)

// PanicError wraps a value recovered from a panicking callable, allowing it
// to propagate through a promise as an ordinary error.
type PanicError struct {
	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf(`future: panic in callable: %v`, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type,
// enabling [errors.Is] and [errors.As] through the wrapper.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
