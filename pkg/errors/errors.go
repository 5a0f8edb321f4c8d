// Package errors provides an error wrapper which remembers where it is wrapped.
//
//	wrapped := xe.Wrap(err)
//
// The message of `wrapped` has the function name, file and line of the caller,
// followed by " <- " and the message of `err`.
// Reading messages with replacing " <- " to newlines gives a trail of wrapping points.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

type ErrWithCaller struct {
	file     string
	line     int
	funcname string
	note     string
	err      error
}

func (e *ErrWithCaller) File() string {
	return e.file
}

func (e *ErrWithCaller) Line() int {
	return e.line
}

func (e *ErrWithCaller) Func() string {
	return e.funcname
}

func (e *ErrWithCaller) Error() string {
	loc := fmt.Sprintf(`@ %s "%s" l%d`, e.funcname, e.file, e.line)
	if e.note != "" {
		loc = fmt.Sprintf("%s (%s)", loc, e.note)
	}
	return loc + " <- " + e.err.Error()
}

func (e *ErrWithCaller) Unwrap() error {
	return e.err
}

// New creates a new error with the location of the caller.
func New(text string) error {
	return wrap("", errors.New(text), 1)
}

// Wrap err with the location of the caller.
//
// When err is nil, it returns nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return wrap("", err, 1)
}

// WrapAsOuter wraps err with the location of depth-th caller of the caller.
//
// WrapAsOuter(err, 0) is same as Wrap(err).
func WrapAsOuter(err error, depth int) error {
	if err == nil {
		return nil
	}
	return wrap("", err, depth+1)
}

// WrapWithNote wraps err with the location of the caller and a note.
func WrapWithNote(note string, err error) error {
	if err == nil {
		return nil
	}
	return wrap(note, err, 1)
}

func wrap(note string, err error, depth int) error {
	e := &ErrWithCaller{
		funcname: "(unknown func)",
		file:     "?",
		line:     -1,
		note:     note,
		err:      err,
	}

	pc, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return e
	}
	e.file, e.line = file, line
	if fn := runtime.FuncForPC(pc); fn != nil {
		e.funcname = fn.Name()
	}
	return e
}
