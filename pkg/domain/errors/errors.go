package errors

import "errors"

var (
	// requested entity is not found.
	ErrMissing = errors.New("missing")

	// more entities are found than expected.
	ErrTooMuch = errors.New("too much")

	// entity conflicts with an existing one.
	ErrConflict = errors.New("conflict")

	// state transition is rejected because its precondition does not hold.
	//
	// This happens when a concurrent worker has already advanced the entity.
	ErrInvalidStateChanging = errors.New("invalid state changing")

	// a job is stale: the entity it refers has been changed since the job was published.
	ErrStale = errors.New("stale")

	// input (job payload, request body, ...) is malformed.
	ErrValidation = errors.New("validation error")

	// the owner organization is not permitted to use the platform.
	ErrNotPermitted = errors.New("not permitted")

	// two dependencies resolve to the same instance.
	ErrDuplicateDependency = errors.New("duplicate dependency")

	// a dependency is neither an instance reference nor a repo/branch/org spec.
	ErrInvalidDependency = errors.New("invalid dependency")

	// the entity can not be removed because it is referenced from others.
	ErrInUse = errors.New("in use")
)
