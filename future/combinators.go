package future

import (
	"time"
)

// Pair holds the results of [WhenAll2].
type Pair[A, B any] struct {
	A A
	B B
}

// Triple holds the results of [WhenAll3].
type Triple[A, B, C any] struct {
	A A
	B B
	C C
}

// WhenAll returns a future that resolves with every input's value, in input
// order, once all inputs have settled successfully. If an input fails, the
// combined future fails with the first error encountered in input order. An
// empty input resolves immediately with an empty slice.
func WhenAll[T any](futures []Future[T]) Future[[]T] {
	return whenAll(futures, 0)
}

// WhenAllTimeout is [WhenAll] with a per-input timeout: if any input is not
// settled within d of being waited on, that input is cancelled, and the
// combined future fails with [ErrTimeout].
func WhenAllTimeout[T any](futures []Future[T], d time.Duration) Future[[]T] {
	if d <= 0 {
		panic(`future: non-positive timeout`)
	}
	return whenAll(futures, d)
}

func whenAll[T any](futures []Future[T], d time.Duration) Future[[]T] {
	s := newState[[]T]()
	if len(futures) == 0 {
		_ = s.setValue([]T{})
		return Future[[]T]{s: s}
	}

	// Inputs are copied so a caller mutating the slice cannot race the
	// collector goroutine.
	inputs := make([]Future[T], len(futures))
	copy(inputs, futures)

	go func() {
		values := make([]T, len(inputs))
		for i, f := range inputs {
			var (
				v   T
				err error
			)
			if d > 0 {
				v, err = f.WaitFor(d)
			} else {
				v, err = f.Wait()
			}
			if err != nil {
				_ = s.setError(err)
				return
			}
			values[i] = v
		}
		_ = s.setValue(values)
	}()
	return Future[[]T]{s: s}
}

// WhenAll2 is the tuple-valued form of [WhenAll] for two differently-typed
// futures.
func WhenAll2[A, B any](fa Future[A], fb Future[B]) Future[Pair[A, B]] {
	s := newState[Pair[A, B]]()
	go func() {
		a, err := fa.Wait()
		if err != nil {
			_ = s.setError(err)
			return
		}
		b, err := fb.Wait()
		if err != nil {
			_ = s.setError(err)
			return
		}
		_ = s.setValue(Pair[A, B]{A: a, B: b})
	}()
	return Future[Pair[A, B]]{s: s}
}

// WhenAll3 is the tuple-valued form of [WhenAll] for three differently-typed
// futures.
func WhenAll3[A, B, C any](fa Future[A], fb Future[B], fc Future[C]) Future[Triple[A, B, C]] {
	s := newState[Triple[A, B, C]]()
	go func() {
		a, err := fa.Wait()
		if err != nil {
			_ = s.setError(err)
			return
		}
		b, err := fb.Wait()
		if err != nil {
			_ = s.setError(err)
			return
		}
		c, err := fc.Wait()
		if err != nil {
			_ = s.setError(err)
			return
		}
		_ = s.setValue(Triple[A, B, C]{A: a, B: b, C: c})
	}()
	return Future[Triple[A, B, C]]{s: s}
}
