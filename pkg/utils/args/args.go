// Package args makes flag.Value from parser functions.
package args

// Adapter is a flag.Value which stores what its parser returns.
type Adapter[T interface{ String() string }] struct {
	parse func(string) (T, error)
	value T
	set   bool
}

// Parser wraps parse as a flag.Value.
//
//	loopType := args.Parser(domain.AsLoopType)
//	flag.Var(loopType, "type", "loop type")
func Parser[T interface{ String() string }](parse func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parse: parse}
}

func (a *Adapter[T]) String() string {
	if !a.set {
		return ""
	}
	return a.value.String()
}

func (a *Adapter[T]) Set(raw string) error {
	v, err := a.parse(raw)
	if err != nil {
		return err
	}
	a.value, a.set = v, true
	return nil
}

// Value returns the parsed value, or zero value if the flag is not given.
func (a *Adapter[T]) Value() T {
	return a.value
}

func (a *Adapter[T]) IsSet() bool {
	return a.set
}

// OrElse returns the parsed value if the flag is given.
// Otherwise, it parses fallback and returns that.
func (a *Adapter[T]) OrElse(fallback string) (T, error) {
	if a.set {
		return a.value, nil
	}
	return a.parse(fallback)
}
