package future

// Then schedules fn to run with f's value once f settles, returning a future
// for fn's result. If f fails or is cancelled, the returned future surfaces
// the same outcome without invoking fn. Cancelling the returned future does
// not interrupt a running fn; its result is discarded.
//
// Then is a package function because Go methods cannot introduce type
// parameters.
func Then[T, U any](f Future[T], fn func(T) (U, error)) Future[U] {
	if fn == nil {
		panic(`future: nil function`)
	}
	s := newState[U]()
	go func() {
		v, err := f.Wait()
		if err != nil {
			propagate(s, f, err)
			return
		}
		settleWith(s, fn, v)
	}()
	return Future[U]{s: s}
}

// Catching returns a future that invokes fn with the error outcome if f
// fails (including cancellation), resolving with fn's result; a successful
// f's value is forwarded unchanged.
func Catching[T any](f Future[T], fn func(error) (T, error)) Future[T] {
	if fn == nil {
		panic(`future: nil function`)
	}
	s := newState[T]()
	go func() {
		v, err := f.Wait()
		if err == nil {
			_ = s.setValue(v)
			return
		}
		settleWith(s, fn, err)
	}()
	return Future[T]{s: s}
}

// Retry invokes fn with f's value, retrying on error, calling fn at most
// attempts times in all (at least once). Only the final error is propagated. As with [Then], an upstream failure or
// cancellation bypasses fn.
func Retry[T, U any](f Future[T], fn func(T) (U, error), attempts int) Future[U] {
	if fn == nil {
		panic(`future: nil function`)
	}
	if attempts < 1 {
		attempts = 1
	}
	s := newState[U]()
	go func() {
		v, err := f.Wait()
		if err != nil {
			propagate(s, f, err)
			return
		}
		var u U
		for i := 0; i < attempts; i++ {
			u, err = invoke(fn, v)
			if err == nil {
				break
			}
		}
		if err != nil {
			_ = s.setError(err)
		} else {
			_ = s.setValue(u)
		}
	}()
	return Future[U]{s: s}
}

// propagate forwards an upstream outcome to a downstream state, mapping
// upstream cancellation to downstream cancellation.
func propagate[T, U any](s *state[U], f Future[T], err error) {
	if f.Cancelled() {
		s.cancel()
		return
	}
	_ = s.setError(err)
}

// settleWith runs fn under panic protection and settles s with the result.
func settleWith[A, U any](s *state[U], fn func(A) (U, error), arg A) {
	u, err := invoke(fn, arg)
	if err != nil {
		_ = s.setError(err)
	} else {
		_ = s.setValue(u)
	}
}

// invoke calls fn, converting a panic into a [PanicError].
func invoke[A, U any](fn func(A) (U, error), arg A) (u U, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return fn(arg)
}
