package jobs

import (
	"context"
	"time"

	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/job/db"
)

type PublishOption func(*domain.PublishOptions)

// WithDedupeKey prevents publishing a job while another queued job has the same key.
func WithDedupeKey(key string) PublishOption {
	return func(o *domain.PublishOptions) {
		o.DedupeKey = key
	}
}

// After delays the job.
func After(d time.Duration) PublishOption {
	return func(o *domain.PublishOptions) {
		o.VisibleAfter = time.Now().Add(d)
	}
}

func WithMaxAttempts(n int) PublishOption {
	return func(o *domain.PublishOptions) {
		o.MaxAttempts = n
	}
}

type Publisher interface {
	// Publish queues a job.
	//
	// # Returns
	//
	// - bool: false if the job is deduplicated.
	//
	// - error
	Publish(ctx context.Context, payload Payload, options ...PublishOption) (bool, error)
}

type publisher struct {
	queue kdb.Interface
}

func NewPublisher(queue kdb.Interface) Publisher {
	return &publisher{queue: queue}
}

func (p *publisher) Publish(ctx context.Context, payload Payload, options ...PublishOption) (bool, error) {
	buf, err := Encode(payload)
	if err != nil {
		return false, err
	}
	opts := domain.PublishOptions{}
	for _, o := range options {
		o(&opts)
	}
	return p.queue.Publish(ctx, payload.Kind(), buf, opts)
}
