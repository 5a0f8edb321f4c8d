package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opst/drydock/pkg/domain"
	dbmock "github.com/opst/drydock/pkg/domain/internal/db/mock"
	kdb "github.com/opst/drydock/pkg/domain/job/db"
)

type JobInterface struct {
	Impl struct {
		Publish func(ctx context.Context, kind string, payload []byte, options domain.PublishOptions) (bool, error)
		Pop     func(ctx context.Context, kinds []string, handler func(context.Context, domain.Job) domain.JobOutcome) (domain.Job, bool, error)
		Purge   func(ctx context.Context, before time.Time) (int64, error)
	}

	Calls struct {
		Publish dbmock.CallLog[struct {
			Kind    string
			Payload []byte
			Options domain.PublishOptions
		}]
		Pop dbmock.CallLog[struct {
			Kinds   []string
			Handler func(context.Context, domain.Job) domain.JobOutcome
		}]
		Purge dbmock.CallLog[time.Time]
	}
}

func NewJobInterface() *JobInterface {
	return &JobInterface{}
}

var _ kdb.Interface = &JobInterface{}

func (m *JobInterface) Publish(ctx context.Context, kind string, payload []byte, options domain.PublishOptions) (bool, error) {
	m.Calls.Publish = append(m.Calls.Publish, struct {
		Kind    string
		Payload []byte
		Options domain.PublishOptions
	}{Kind: kind, Payload: payload, Options: options})
	if m.Impl.Publish != nil {
		return m.Impl.Publish(ctx, kind, payload, options)
	}

	panic(errors.New("it should not be called"))
}

func (m *JobInterface) Pop(ctx context.Context, kinds []string, handler func(context.Context, domain.Job) domain.JobOutcome) (domain.Job, bool, error) {
	m.Calls.Pop = append(m.Calls.Pop, struct {
		Kinds   []string
		Handler func(context.Context, domain.Job) domain.JobOutcome
	}{Kinds: kinds, Handler: handler})
	if m.Impl.Pop != nil {
		return m.Impl.Pop(ctx, kinds, handler)
	}

	panic(errors.New("it should not be called"))
}

func (m *JobInterface) Purge(ctx context.Context, before time.Time) (int64, error) {
	m.Calls.Purge = append(m.Calls.Purge, before)
	if m.Impl.Purge != nil {
		return m.Impl.Purge(ctx, before)
	}

	panic(errors.New("it should not be called"))
}
