package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	dbmock "github.com/opst/drydock/pkg/domain/internal/db/mock"
	kdb "github.com/opst/drydock/pkg/domain/isolation/db"
)

type IsolationInterface struct {
	Impl struct {
		New                    func(ctx context.Context, isolation kdb.NewIsolation) (domain.Isolation, error)
		Get                    func(ctx context.Context, isolationId string) (domain.Isolation, error)
		FindKilling            func(ctx context.Context, instanceId string) ([]domain.Isolation, error)
		SetKilling             func(ctx context.Context, isolationId string, targets []string) (domain.Isolation, error)
		MarkKilledIfAllStopped func(ctx context.Context, isolationId string) (domain.Isolation, bool, error)
		SetRedeployed          func(ctx context.Context, isolationId string) (domain.Isolation, error)
		Delete                 func(ctx context.Context, isolationId string) (domain.Isolation, error)
	}

	Calls struct {
		New         dbmock.CallLog[kdb.NewIsolation]
		Get         dbmock.CallLog[string]
		FindKilling dbmock.CallLog[string]
		SetKilling  dbmock.CallLog[struct {
			IsolationId string
			Targets     []string
		}]
		MarkKilledIfAllStopped dbmock.CallLog[string]
		SetRedeployed          dbmock.CallLog[string]
		Delete                 dbmock.CallLog[string]
	}
}

func NewIsolationInterface() *IsolationInterface {
	return &IsolationInterface{}
}

var _ kdb.Interface = &IsolationInterface{}

func (m *IsolationInterface) New(ctx context.Context, isolation kdb.NewIsolation) (domain.Isolation, error) {
	m.Calls.New = append(m.Calls.New, isolation)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, isolation)
	}

	panic(errors.New("it should not be called"))
}

func (m *IsolationInterface) Get(ctx context.Context, isolationId string) (domain.Isolation, error) {
	m.Calls.Get = append(m.Calls.Get, isolationId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, isolationId)
	}

	panic(errors.New("it should not be called"))
}

func (m *IsolationInterface) FindKilling(ctx context.Context, instanceId string) ([]domain.Isolation, error) {
	m.Calls.FindKilling = append(m.Calls.FindKilling, instanceId)
	if m.Impl.FindKilling != nil {
		return m.Impl.FindKilling(ctx, instanceId)
	}

	panic(errors.New("it should not be called"))
}

func (m *IsolationInterface) SetKilling(ctx context.Context, isolationId string, targets []string) (domain.Isolation, error) {
	m.Calls.SetKilling = append(m.Calls.SetKilling, struct {
		IsolationId string
		Targets     []string
	}{IsolationId: isolationId, Targets: targets})
	if m.Impl.SetKilling != nil {
		return m.Impl.SetKilling(ctx, isolationId, targets)
	}

	panic(errors.New("it should not be called"))
}

func (m *IsolationInterface) MarkKilledIfAllStopped(ctx context.Context, isolationId string) (domain.Isolation, bool, error) {
	m.Calls.MarkKilledIfAllStopped = append(m.Calls.MarkKilledIfAllStopped, isolationId)
	if m.Impl.MarkKilledIfAllStopped != nil {
		return m.Impl.MarkKilledIfAllStopped(ctx, isolationId)
	}

	panic(errors.New("it should not be called"))
}

func (m *IsolationInterface) SetRedeployed(ctx context.Context, isolationId string) (domain.Isolation, error) {
	m.Calls.SetRedeployed = append(m.Calls.SetRedeployed, isolationId)
	if m.Impl.SetRedeployed != nil {
		return m.Impl.SetRedeployed(ctx, isolationId)
	}

	panic(errors.New("it should not be called"))
}

func (m *IsolationInterface) Delete(ctx context.Context, isolationId string) (domain.Isolation, error) {
	m.Calls.Delete = append(m.Calls.Delete, isolationId)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, isolationId)
	}

	panic(errors.New("it should not be called"))
}
