package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/engine/instances"
	"github.com/opst/drydock/pkg/jobs"
)

type Coordinator struct {
	Impl struct {
		CreateInstance     func(ctx context.Context, req instances.NewInstanceRequest) (domain.Instance, error)
		CreateContainer    func(ctx context.Context, job jobs.InstanceContainerCreate) error
		OnContainerCreated func(ctx context.Context, event jobs.InstanceContainerCreated) error
		StartContainer     func(ctx context.Context, job jobs.InstanceStart) error
		Redeploy           func(ctx context.Context, job jobs.InstanceRedeploy) error
		Rebuild            func(ctx context.Context, job jobs.InstanceRebuild) error
		Kill               func(ctx context.Context, job jobs.InstanceKill) error
		Delete             func(ctx context.Context, job jobs.InstanceDelete) (domain.Instance, error)
		DeleteContainer    func(ctx context.Context, job jobs.ContainerDelete) error
		OnDockRemoved      func(ctx context.Context, event jobs.DockRemoved) error
		KillIsolation      func(ctx context.Context, job jobs.IsolationKill) error
		RedeployIsolation  func(ctx context.Context, job jobs.IsolationRedeploy) error
	}
	Called struct {
		CreateInstance     []instances.NewInstanceRequest
		CreateContainer    []jobs.InstanceContainerCreate
		OnContainerCreated []jobs.InstanceContainerCreated
		StartContainer     []jobs.InstanceStart
		Redeploy           []jobs.InstanceRedeploy
		Rebuild            []jobs.InstanceRebuild
		Kill               []jobs.InstanceKill
		Delete             []jobs.InstanceDelete
		DeleteContainer    []jobs.ContainerDelete
		OnDockRemoved      []jobs.DockRemoved
		KillIsolation      []jobs.IsolationKill
		RedeployIsolation  []jobs.IsolationRedeploy
	}
}

var _ instances.Coordinator = &Coordinator{}

func (m *Coordinator) CreateInstance(ctx context.Context, req instances.NewInstanceRequest) (domain.Instance, error) {
	m.Called.CreateInstance = append(m.Called.CreateInstance, req)
	if m.Impl.CreateInstance == nil {
		return domain.Instance{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateInstance(ctx, req)
}

func (m *Coordinator) CreateContainer(ctx context.Context, job jobs.InstanceContainerCreate) error {
	m.Called.CreateContainer = append(m.Called.CreateContainer, job)
	if m.Impl.CreateContainer == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateContainer(ctx, job)
}

func (m *Coordinator) OnContainerCreated(ctx context.Context, event jobs.InstanceContainerCreated) error {
	m.Called.OnContainerCreated = append(m.Called.OnContainerCreated, event)
	if m.Impl.OnContainerCreated == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.OnContainerCreated(ctx, event)
}

func (m *Coordinator) StartContainer(ctx context.Context, job jobs.InstanceStart) error {
	m.Called.StartContainer = append(m.Called.StartContainer, job)
	if m.Impl.StartContainer == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.StartContainer(ctx, job)
}

func (m *Coordinator) Redeploy(ctx context.Context, job jobs.InstanceRedeploy) error {
	m.Called.Redeploy = append(m.Called.Redeploy, job)
	if m.Impl.Redeploy == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Redeploy(ctx, job)
}

func (m *Coordinator) Rebuild(ctx context.Context, job jobs.InstanceRebuild) error {
	m.Called.Rebuild = append(m.Called.Rebuild, job)
	if m.Impl.Rebuild == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Rebuild(ctx, job)
}

func (m *Coordinator) Kill(ctx context.Context, job jobs.InstanceKill) error {
	m.Called.Kill = append(m.Called.Kill, job)
	if m.Impl.Kill == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Kill(ctx, job)
}

func (m *Coordinator) Delete(ctx context.Context, job jobs.InstanceDelete) (domain.Instance, error) {
	m.Called.Delete = append(m.Called.Delete, job)
	if m.Impl.Delete == nil {
		return domain.Instance{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Delete(ctx, job)
}

func (m *Coordinator) DeleteContainer(ctx context.Context, job jobs.ContainerDelete) error {
	m.Called.DeleteContainer = append(m.Called.DeleteContainer, job)
	if m.Impl.DeleteContainer == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteContainer(ctx, job)
}

func (m *Coordinator) OnDockRemoved(ctx context.Context, event jobs.DockRemoved) error {
	m.Called.OnDockRemoved = append(m.Called.OnDockRemoved, event)
	if m.Impl.OnDockRemoved == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.OnDockRemoved(ctx, event)
}

func (m *Coordinator) KillIsolation(ctx context.Context, job jobs.IsolationKill) error {
	m.Called.KillIsolation = append(m.Called.KillIsolation, job)
	if m.Impl.KillIsolation == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.KillIsolation(ctx, job)
}

func (m *Coordinator) RedeployIsolation(ctx context.Context, job jobs.IsolationRedeploy) error {
	m.Called.RedeployIsolation = append(m.Called.RedeployIsolation, job)
	if m.Impl.RedeployIsolation == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.RedeployIsolation(ctx, job)
}
