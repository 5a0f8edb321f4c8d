package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/autoisolation/db"
	dbmock "github.com/opst/drydock/pkg/domain/internal/db/mock"
)

type AutoIsolationInterface struct {
	Impl struct {
		New            func(ctx context.Context, config kdb.NewAutoIsolationConfig) (domain.AutoIsolationConfig, error)
		Get            func(ctx context.Context, autoIsolationConfigId string) (domain.AutoIsolationConfig, error)
		FindByInstance func(ctx context.Context, instanceId string) (domain.AutoIsolationConfig, error)
		SetInstance    func(ctx context.Context, autoIsolationConfigId string, instanceId string) error
		PushDependency func(ctx context.Context, autoIsolationConfigId string, dependency domain.Dependency) error
		RemoveInstance func(ctx context.Context, instanceId string) error
		Delete         func(ctx context.Context, autoIsolationConfigId string) error
	}

	Calls struct {
		New            dbmock.CallLog[kdb.NewAutoIsolationConfig]
		Get            dbmock.CallLog[string]
		FindByInstance dbmock.CallLog[string]
		SetInstance    dbmock.CallLog[struct {
			AutoIsolationConfigId string
			InstanceId            string
		}]
		PushDependency dbmock.CallLog[struct {
			AutoIsolationConfigId string
			Dependency            domain.Dependency
		}]
		RemoveInstance dbmock.CallLog[string]
		Delete         dbmock.CallLog[string]
	}
}

func NewAutoIsolationInterface() *AutoIsolationInterface {
	return &AutoIsolationInterface{}
}

var _ kdb.Interface = &AutoIsolationInterface{}

func (m *AutoIsolationInterface) New(ctx context.Context, config kdb.NewAutoIsolationConfig) (domain.AutoIsolationConfig, error) {
	m.Calls.New = append(m.Calls.New, config)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, config)
	}

	panic(errors.New("it should not be called"))
}

func (m *AutoIsolationInterface) Get(ctx context.Context, autoIsolationConfigId string) (domain.AutoIsolationConfig, error) {
	m.Calls.Get = append(m.Calls.Get, autoIsolationConfigId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, autoIsolationConfigId)
	}

	panic(errors.New("it should not be called"))
}

func (m *AutoIsolationInterface) FindByInstance(ctx context.Context, instanceId string) (domain.AutoIsolationConfig, error) {
	m.Calls.FindByInstance = append(m.Calls.FindByInstance, instanceId)
	if m.Impl.FindByInstance != nil {
		return m.Impl.FindByInstance(ctx, instanceId)
	}

	panic(errors.New("it should not be called"))
}

func (m *AutoIsolationInterface) SetInstance(ctx context.Context, autoIsolationConfigId string, instanceId string) error {
	m.Calls.SetInstance = append(m.Calls.SetInstance, struct {
		AutoIsolationConfigId string
		InstanceId            string
	}{AutoIsolationConfigId: autoIsolationConfigId, InstanceId: instanceId})
	if m.Impl.SetInstance != nil {
		return m.Impl.SetInstance(ctx, autoIsolationConfigId, instanceId)
	}

	panic(errors.New("it should not be called"))
}

func (m *AutoIsolationInterface) PushDependency(ctx context.Context, autoIsolationConfigId string, dependency domain.Dependency) error {
	m.Calls.PushDependency = append(m.Calls.PushDependency, struct {
		AutoIsolationConfigId string
		Dependency            domain.Dependency
	}{AutoIsolationConfigId: autoIsolationConfigId, Dependency: dependency})
	if m.Impl.PushDependency != nil {
		return m.Impl.PushDependency(ctx, autoIsolationConfigId, dependency)
	}

	panic(errors.New("it should not be called"))
}

func (m *AutoIsolationInterface) RemoveInstance(ctx context.Context, instanceId string) error {
	m.Calls.RemoveInstance = append(m.Calls.RemoveInstance, instanceId)
	if m.Impl.RemoveInstance != nil {
		return m.Impl.RemoveInstance(ctx, instanceId)
	}

	panic(errors.New("it should not be called"))
}

func (m *AutoIsolationInterface) Delete(ctx context.Context, autoIsolationConfigId string) error {
	m.Calls.Delete = append(m.Calls.Delete, autoIsolationConfigId)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, autoIsolationConfigId)
	}

	panic(errors.New("it should not be called"))
}
