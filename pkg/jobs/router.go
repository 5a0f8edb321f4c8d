package jobs

import (
	"context"
	"fmt"
	"slices"

	"github.com/opst/drydock/pkg/domain"
	domerr "github.com/opst/drydock/pkg/domain/errors"
)

// Handler processes a job.
type Handler func(ctx context.Context, job domain.Job) error

// Handle makes Handler which decodes payload P and passes it to f.
func Handle[P Payload](f func(context.Context, P) error) Handler {
	return func(ctx context.Context, job domain.Job) error {
		p, err := Decode[P](job.Payload)
		if err != nil {
			return err
		}
		return f(ctx, p)
	}
}

// Ignore makes Handler which acknowledges jobs of P without doing anything.
//
// It is used for kinds published for external consumers.
func Ignore[P Payload]() Handler {
	return Handle(func(context.Context, P) error { return nil })
}

// Router dispatches jobs to handlers by kind.
type Router map[string]Handler

// Kinds returns kinds which the router can handle, sorted.
func (r Router) Kinds() []string {
	kinds := make([]string, 0, len(r))
	for k := range r {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Run processes the job, and decides its outcome.
func (r Router) Run(ctx context.Context, job domain.Job) domain.JobOutcome {
	h, ok := r[job.Kind]
	if !ok {
		return domain.Drop(fmt.Errorf("%w: unknown job kind: %s", domerr.ErrValidation, job.Kind))
	}
	return Classify(h(ctx, job))
}
