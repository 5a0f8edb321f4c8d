// Package try converts (value, error) pairs into a value, or a fatal failure.
//
// It is mainly for tests and for main functions:
//
//	conf := try.To(configs.Load(path)).OrFatal(logger)
package try

// Fataler has method `Fatal`, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either wraps a pair of (T, error).
type Either[T any] interface {
	// Get returns the wrapped pair as it is.
	Get() (T, error)

	// OrFatal returns the value, or calls ftl.Fatal(err) when it has an error.
	//
	// If ftl has "Helper()" method (like *testing.T), also that is called before `Fatal`.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value, or d when it has an error.
	OrDefault(d T) T
}

func To[T any](value T, err error) Either[T] {
	return either[T]{value: value, err: err}
}

// Map converts the value if it has no error.
func Map[T, R any](e Either[T], mapper func(T) R) Either[R] {
	v, err := e.Get()
	if err != nil {
		return either[R]{err: err}
	}
	return either[R]{value: mapper(v)}
}

type either[T any] struct {
	value T
	err   error
}

func (e either[T]) Get() (T, error) {
	if e.err != nil {
		return *new(T), e.err
	}
	return e.value, nil
}

func (e either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}

func (e either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}
