package db

import (
	"context"
	"time"

	"github.com/opst/drydock/pkg/domain"
)

// Interface is a job queue.
//
// Delivery is at-least-once: a job can be handled again when the worker
// handling it has gone before recording the outcome.
type Interface interface {
	// enqueue a job.
	//
	// # Returns
	//
	// - bool: false when a queued job has the same dedupe key, and nothing is enqueued.
	//
	// - error
	Publish(ctx context.Context, kind string, payload []byte, options domain.PublishOptions) (bool, error)

	// pick a visible job of the kinds, and handle it.
	//
	// While the handler runs, no other workers pick the job.
	// The outcome of the handler decides the next status of the job.
	//
	// # Returns
	//
	// - Job: the picked job, updated with the outcome.
	//
	// - bool: false when there are no jobs to be picked.
	//
	// - error: error on the queue itself. Errors of handler are recorded in the job.
	Pop(ctx context.Context, kinds []string, handler func(context.Context, domain.Job) domain.JobOutcome) (domain.Job, bool, error)

	// delete finished (done, dropped or failed) jobs updated before the time.
	//
	// # Returns
	//
	// - int64: the number of deleted jobs.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
