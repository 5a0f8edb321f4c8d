// Package runtimeerrors classifies errors reported by the container runtime on docks.
//
// The runtime reports errors with HTTP-like status codes.
// Errors in this package keep the code, and StatusOf reads it out.
package runtimeerrors

import (
	"errors"
	"fmt"
	"net/http"

	xe "github.com/opst/drydock/pkg/errors"
)

type wrappingError struct {
	message  string
	causedBy error
}

func as[E error](err error) bool {
	if err == nil {
		return false
	}
	p := new(E)
	return errors.As(err, p)
}

func format(e wrappingError) string {
	if e.causedBy == nil {
		return e.message
	}
	if e.message == "" {
		return fmt.Sprintf("caused by: %+v", e.causedBy)
	}
	return fmt.Sprintf("%s / caused by: %+v", e.message, e.causedBy)
}

// Requested container or image does not exist on the dock.
type ErrMissing wrappingError

var AsMissing = as[*ErrMissing]

func NewMissing(message string) error {
	return xe.WrapAsOuter(&ErrMissing{message: message}, 1)
}

func NewMissingCausedBy(message string, err error) error {
	return xe.WrapAsOuter(&ErrMissing{message: message, causedBy: err}, 1)
}

func (e *ErrMissing) Error() string {
	return format(wrappingError(*e))
}

func (e *ErrMissing) Unwrap() error {
	return e.causedBy
}

// The container is in a state which does not accept the request (e.g. name conflict).
type ErrConflict wrappingError

var AsConflict = as[*ErrConflict]

func NewConflict(message string) error {
	return xe.WrapAsOuter(&ErrConflict{message: message}, 1)
}

func NewConflictCausedBy(message string, err error) error {
	return xe.WrapAsOuter(&ErrConflict{message: message, causedBy: err}, 1)
}

func (e *ErrConflict) Error() string {
	return format(wrappingError(*e))
}

func (e *ErrConflict) Unwrap() error {
	return e.causedBy
}

// The dock can not be reached, or reports server side errors.
type ErrUnavailable wrappingError

var AsUnavailable = as[*ErrUnavailable]

func NewUnavailableCausedBy(message string, err error) error {
	return xe.WrapAsOuter(&ErrUnavailable{message: message, causedBy: err}, 1)
}

func (e *ErrUnavailable) Error() string {
	return format(wrappingError(*e))
}

func (e *ErrUnavailable) Unwrap() error {
	return e.causedBy
}

// StatusOf returns HTTP status code corresponding to err.
//
// It returns 0 when err is not classified.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return 0
	case AsMissing(err):
		return http.StatusNotFound
	case AsConflict(err):
		return http.StatusConflict
	case AsUnavailable(err):
		return http.StatusServiceUnavailable
	}
	return 0
}
