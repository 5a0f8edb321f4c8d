package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	apierr "github.com/opst/drydock/pkg/api/errors"
)

// bind decodes and validates the request body.
func bind[T any](c echo.Context) (T, error) {
	v := new(T)
	if err := c.Bind(v); err != nil {
		return *v, apierr.BadRequest("request body should be a JSON object.", err)
	}
	if err := c.Validate(v); err != nil {
		return *v, apierr.BadRequest("fix the request.", err)
	}
	return *v, nil
}

type requestValidator struct {
	v *validator.Validate
}

func (rv requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// NewValidator makes echo.Validator checking `validate` tags of request bodies.
func NewValidator() echo.Validator {
	return requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}
