// Package try shortens handling of (value, error) pairs, mainly in tests.
package try

// Fataler is what can stop on failure, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Result is a pair of value and error.
type Result[T any] struct {
	value T
	err   error
}

// To captures a (value, error) pair.
func To[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// OrFatal returns the value. When the error is not nil, ftl.Fatal is called with it.
func (r Result[T]) OrFatal(ftl Fataler) T {
	if r.err == nil {
		return r.value
	}
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(r.err)
	return r.value
}

// OrDefault returns the value, or d when the error is not nil.
func (r Result[T]) OrDefault(d T) T {
	if r.err != nil {
		return d
	}
	return r.value
}
