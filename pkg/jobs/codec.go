package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	domerr "github.com/opst/drydock/pkg/domain/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the payload with its `validate` tags.
//
// # Returns
//
// - error: wrapping ErrValidation when the payload is invalid.
func Validate(p Payload) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s: %s", domerr.ErrValidation, p.Kind(), err)
	}
	return nil
}

// Encode validates and marshals the payload.
func Encode(p Payload) ([]byte, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// Decode unmarshals and validates the payload.
//
// # Returns
//
// - error: wrapping ErrValidation when the payload is malformed or invalid.
func Decode[P Payload](payload []byte) (P, error) {
	p := new(P)
	if err := json.Unmarshal(payload, p); err != nil {
		return *p, fmt.Errorf("%w: %s: %s", domerr.ErrValidation, (*p).Kind(), err)
	}
	if err := Validate(*p); err != nil {
		return *p, err
	}
	return *p, nil
}
