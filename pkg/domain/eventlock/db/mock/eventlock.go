package mock

import (
	"context"
	"errors"
	"time"

	kdb "github.com/opst/drydock/pkg/domain/eventlock/db"
	dbmock "github.com/opst/drydock/pkg/domain/internal/db/mock"
)

type EventLockInterface struct {
	Impl struct {
		Acquire func(ctx context.Context, key string, ttl time.Duration) (bool, error)
		Release func(ctx context.Context, key string) error
		Sweep   func(ctx context.Context) (int64, error)
	}

	Calls struct {
		Acquire dbmock.CallLog[struct {
			Key string
			TTL time.Duration
		}]
		Release dbmock.CallLog[string]
		Sweep   dbmock.CallLog[struct{}]
	}
}

func NewEventLockInterface() *EventLockInterface {
	return &EventLockInterface{}
}

var _ kdb.Interface = &EventLockInterface{}

func (m *EventLockInterface) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.Calls.Acquire = append(m.Calls.Acquire, struct {
		Key string
		TTL time.Duration
	}{Key: key, TTL: ttl})
	if m.Impl.Acquire != nil {
		return m.Impl.Acquire(ctx, key, ttl)
	}

	panic(errors.New("it should not be called"))
}

func (m *EventLockInterface) Release(ctx context.Context, key string) error {
	m.Calls.Release = append(m.Calls.Release, key)
	if m.Impl.Release != nil {
		return m.Impl.Release(ctx, key)
	}

	panic(errors.New("it should not be called"))
}

func (m *EventLockInterface) Sweep(ctx context.Context) (int64, error) {
	m.Calls.Sweep = append(m.Calls.Sweep, struct{}{})
	if m.Impl.Sweep != nil {
		return m.Impl.Sweep(ctx)
	}

	panic(errors.New("it should not be called"))
}
