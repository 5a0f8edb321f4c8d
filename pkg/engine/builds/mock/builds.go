package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/engine/builds"
	"github.com/opst/drydock/pkg/jobs"
)

type Orchestrator struct {
	Impl struct {
		Request            func(ctx context.Context, req builds.BuildRequest) (domain.Build, error)
		CreateContainer    func(ctx context.Context, job jobs.BuildContainerCreate) error
		OnContainerCreated func(ctx context.Context, event jobs.BuildContainerCreated) error
		OnContainerDied    func(ctx context.Context, event jobs.BuildContainerDied) error
	}
	Called struct {
		Request            []builds.BuildRequest
		CreateContainer    []jobs.BuildContainerCreate
		OnContainerCreated []jobs.BuildContainerCreated
		OnContainerDied    []jobs.BuildContainerDied
	}
}

var _ builds.Orchestrator = &Orchestrator{}

func (m *Orchestrator) Request(ctx context.Context, req builds.BuildRequest) (domain.Build, error) {
	m.Called.Request = append(m.Called.Request, req)
	if m.Impl.Request == nil {
		return domain.Build{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Request(ctx, req)
}

func (m *Orchestrator) CreateContainer(ctx context.Context, job jobs.BuildContainerCreate) error {
	m.Called.CreateContainer = append(m.Called.CreateContainer, job)
	if m.Impl.CreateContainer == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateContainer(ctx, job)
}

func (m *Orchestrator) OnContainerCreated(ctx context.Context, event jobs.BuildContainerCreated) error {
	m.Called.OnContainerCreated = append(m.Called.OnContainerCreated, event)
	if m.Impl.OnContainerCreated == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.OnContainerCreated(ctx, event)
}

func (m *Orchestrator) OnContainerDied(ctx context.Context, event jobs.BuildContainerDied) error {
	m.Called.OnContainerDied = append(m.Called.OnContainerDied, event)
	if m.Impl.OnContainerDied == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.OnContainerDied(ctx, event)
}
