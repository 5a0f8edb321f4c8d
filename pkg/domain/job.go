package domain

import (
	"errors"
	"fmt"
	"time"
)

type JobStatus string

const (
	// job is waiting to be processed (or being processed).
	JobQueued JobStatus = "queued"

	// job is processed.
	JobDone JobStatus = "done"

	// job is given up without retrying, because it will never succeed.
	JobDropped JobStatus = "dropped"

	// job is given up after retrying too many times.
	JobFailed JobStatus = "failed"
)

func (s JobStatus) String() string {
	return string(s)
}

var ErrUnknownJobStatus = errors.New("unknown job status")

func AsJobStatus(s string) (JobStatus, error) {
	switch st := JobStatus(s); st {
	case JobQueued, JobDone, JobDropped, JobFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownJobStatus, s)
}

type Job struct {
	JobId     int64
	Kind      string
	Payload   []byte
	DedupeKey string

	Status      JobStatus
	Attempts    int
	MaxAttempts int

	VisibleAfter time.Time
	LastError    string
	CreatedAt    time.Time
}

// JobOutcome tells the queue what to do with a popped job.
type JobOutcome struct {
	status JobStatus
	err    error
}

// Ack marks the job as done.
func Ack() JobOutcome {
	return JobOutcome{status: JobDone}
}

// Drop gives up the job without retrying.
func Drop(err error) JobOutcome {
	return JobOutcome{status: JobDropped, err: err}
}

// Retry requeues the job with backoff. When retried too many times, the job is failed.
func Retry(err error) JobOutcome {
	return JobOutcome{status: JobQueued, err: err}
}

func (o JobOutcome) Status() JobStatus {
	if o.status == "" {
		return JobDone
	}
	return o.status
}

func (o JobOutcome) Err() error {
	return o.err
}

func (o JobOutcome) String() string {
	switch o.Status() {
	case JobDone:
		return "ack"
	case JobDropped:
		return fmt.Sprintf("drop (%v)", o.err)
	}
	return fmt.Sprintf("retry (%v)", o.err)
}

// PublishOptions are options for publishing a job.
type PublishOptions struct {
	// while a job with the same key is queued, publishing is ignored.
	DedupeKey string

	// the job is not processed until this time.
	VisibleAfter time.Time

	// 0 means default.
	MaxAttempts int
}
