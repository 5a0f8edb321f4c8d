package jobs

import (
	"github.com/opst/drydock/pkg/domain"
	domerr "github.com/opst/drydock/pkg/domain/errors"
)

// errors for which retrying a job never succeeds.
var fatal = []error{
	domerr.ErrMissing,
	domerr.ErrStale,
	domerr.ErrInvalidStateChanging,
	domerr.ErrValidation,
	domerr.ErrNotPermitted,
	domerr.ErrDuplicateDependency,
	domerr.ErrInvalidDependency,
	domerr.ErrInUse,
}

// Classify decides what to do with a job which its handler returns err for.
//
// - nil: ack.
//
// - missing entities, stale jobs, rejected state changes, malformed payloads
// and business rule violations: drop.
//
// - others: retry.
//
// An error composed of many (errors.Join, or fmt.Errorf with many %w) is dropped
// only when all of them are to be dropped.
// Otherwise, a transient failure among them would be lost.
func Classify(err error) domain.JobOutcome {
	if err == nil {
		return domain.Ack()
	}
	if isFatal(err) {
		return domain.Drop(err)
	}
	return domain.Retry(err)
}

func isFatal(err error) bool {
	for err != nil {
		if matchesFatal(err) {
			return true
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return false
			}
			for _, e := range errs {
				if !isFatal(e) {
					return false
				}
			}
			return true
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return false
		}
	}
	return false
}

// matchesFatal tells err itself (not what it wraps) is one of fatal errors.
func matchesFatal(err error) bool {
	is, hasIs := err.(interface{ Is(error) bool })
	for _, f := range fatal {
		if err == f || (hasIs && is.Is(f)) {
			return true
		}
	}
	return false
}
