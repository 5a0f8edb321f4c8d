// Package errors builds error responses of drydock API.
//
// Error responses are JSON like:
//
//	{"message": {"reason": "not found", "advice": "..."}}
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	domerr "github.com/opst/drydock/pkg/domain/errors"
)

type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	Cause  error  `json:"-"`
}

func (em *ErrorMessage) UnmarshalJSON(bytes []byte) error {
	f := new(struct {
		Reason *string `json:"reason"`
		Advice *string `json:"advice,omitempty"`
	})
	if err := json.Unmarshal(bytes, f); err != nil {
		return err
	}

	if f.Reason == nil {
		return fmt.Errorf(`required field missing: "reason"`)
	}
	em.Reason = *f.Reason
	if f.Advice != nil {
		em.Advice = *f.Advice
	}
	return nil
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by:", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

type ErrorMessageOption func(in *ErrorMessage) *ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}

	return echo.NewHTTPError(code, ErrorResponse{Message: msg}).SetInternal(msg)
}

func NotFound(advice string) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, "not found", WithAdvice(advice))
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusBadRequest,
		"bad request",
		WithAdvice(advice),
		WithError(err),
	)
}

func Conflict(message string, options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(http.StatusConflict, message, options...)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusInternalServerError,
		"unexpected error",
		WithAdvice("ask your system admin."),
		WithError(err),
	)
}

// Of translates errors of drydock into an error response.
//
// - ErrMissing: 404
//
// - ErrValidation, ErrInvalidDependency, ErrDuplicateDependency: 400
//
// - ErrConflict, ErrInvalidStateChanging, ErrInUse: 409
//
// - ErrNotPermitted: 403
//
// - others: 500
func Of(err error) *echo.HTTPError {
	if herr := new(echo.HTTPError); errors.As(err, &herr) {
		return herr
	}

	switch {
	case errors.Is(err, domerr.ErrMissing):
		return NewErrorMessage(http.StatusNotFound, "not found", WithError(err))
	case errors.Is(err, domerr.ErrValidation):
		return BadRequest("fix the request.", err)
	case errors.Is(err, domerr.ErrInvalidDependency):
		return BadRequest("dependency should be an instance id, or a set of repo, branch and org.", err)
	case errors.Is(err, domerr.ErrDuplicateDependency):
		return BadRequest("dependencies should resolve to distinct instances.", err)
	case errors.Is(err, domerr.ErrConflict):
		return Conflict("conflict", WithError(err))
	case errors.Is(err, domerr.ErrInvalidStateChanging):
		return Conflict("the resource is in a state which does not accept the request", WithAdvice("retry later."), WithError(err))
	case errors.Is(err, domerr.ErrInUse):
		return Conflict("the resource is in use", WithError(err))
	case errors.Is(err, domerr.ErrNotPermitted):
		return NewErrorMessage(http.StatusForbidden, "not permitted", WithAdvice("check the plan of the organization."), WithError(err))
	}
	return InternalServerError(err)
}
