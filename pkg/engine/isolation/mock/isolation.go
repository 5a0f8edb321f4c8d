package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/engine/isolation"
	"github.com/opst/drydock/pkg/jobs"
)

type Service struct {
	Impl struct {
		FetchDependentInstances     func(ctx context.Context, master domain.Instance) ([]domain.Instance, error)
		FetchIsolationInstanceModel func(ctx context.Context, isolationId string, dep domain.Instance) (domain.Instance, error)
		CreateClusterInstance       func(ctx context.Context, job jobs.ClusterInstanceCreate) (domain.Instance, error)
		CreateIsolation             func(ctx context.Context, req isolation.IsolationRequest) (domain.Isolation, error)
		DeleteIsolation             func(ctx context.Context, isolationId string) (domain.Isolation, error)
		CreateAutoIsolationConfig   func(ctx context.Context, req isolation.AutoIsolationConfigRequest) (domain.AutoIsolationConfig, error)
	}
	Called struct {
		FetchDependentInstances     []domain.Instance
		FetchIsolationInstanceModel []domain.Instance
		CreateClusterInstance       []jobs.ClusterInstanceCreate
		CreateIsolation             []isolation.IsolationRequest
		DeleteIsolation             []string
		CreateAutoIsolationConfig   []isolation.AutoIsolationConfigRequest
	}
}

var _ isolation.Service = &Service{}

func (m *Service) FetchDependentInstances(ctx context.Context, master domain.Instance) ([]domain.Instance, error) {
	m.Called.FetchDependentInstances = append(m.Called.FetchDependentInstances, master)
	if m.Impl.FetchDependentInstances == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FetchDependentInstances(ctx, master)
}

func (m *Service) FetchIsolationInstanceModel(ctx context.Context, isolationId string, dep domain.Instance) (domain.Instance, error) {
	m.Called.FetchIsolationInstanceModel = append(m.Called.FetchIsolationInstanceModel, dep)
	if m.Impl.FetchIsolationInstanceModel == nil {
		return domain.Instance{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FetchIsolationInstanceModel(ctx, isolationId, dep)
}

func (m *Service) CreateClusterInstance(ctx context.Context, job jobs.ClusterInstanceCreate) (domain.Instance, error) {
	m.Called.CreateClusterInstance = append(m.Called.CreateClusterInstance, job)
	if m.Impl.CreateClusterInstance == nil {
		return domain.Instance{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateClusterInstance(ctx, job)
}

func (m *Service) CreateIsolation(ctx context.Context, req isolation.IsolationRequest) (domain.Isolation, error) {
	m.Called.CreateIsolation = append(m.Called.CreateIsolation, req)
	if m.Impl.CreateIsolation == nil {
		return domain.Isolation{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateIsolation(ctx, req)
}

func (m *Service) DeleteIsolation(ctx context.Context, isolationId string) (domain.Isolation, error) {
	m.Called.DeleteIsolation = append(m.Called.DeleteIsolation, isolationId)
	if m.Impl.DeleteIsolation == nil {
		return domain.Isolation{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteIsolation(ctx, isolationId)
}

func (m *Service) CreateAutoIsolationConfig(ctx context.Context, req isolation.AutoIsolationConfigRequest) (domain.AutoIsolationConfig, error) {
	m.Called.CreateAutoIsolationConfig = append(m.Called.CreateAutoIsolationConfig, req)
	if m.Impl.CreateAutoIsolationConfig == nil {
		return domain.AutoIsolationConfig{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateAutoIsolationConfig(ctx, req)
}
