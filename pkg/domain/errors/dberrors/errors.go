package dberrors

import (
	"fmt"

	domerr "github.com/opst/drydock/pkg/domain/errors"
)

// requested data is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return domerr.ErrMissing
}

// requested data is found too much.
type TooMuch struct {
	Table    string
	Identity string
	Expected int
}

var _ error = TooMuch{}

func (t TooMuch) Error() string {
	return fmt.Sprintf(
		"%s is found in %s more than %d times",
		t.Identity, t.Table, t.Expected,
	)
}

func (t TooMuch) Unwrap() error {
	return domerr.ErrTooMuch
}

// conditional update matched no rows.
type Unmatched struct {
	Table    string
	Identity string

	// human readable precondition
	Condition string
}

var _ error = Unmatched{}

func (u Unmatched) Error() string {
	return fmt.Sprintf(
		"%s in %s does not satisfy the condition: %s",
		u.Identity, u.Table, u.Condition,
	)
}

func (u Unmatched) Unwrap() error {
	return domerr.ErrInvalidStateChanging
}
