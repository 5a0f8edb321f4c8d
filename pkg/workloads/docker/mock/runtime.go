package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/workloads/docker"
)

type ContainerCall struct {
	Host        string
	ContainerId string
}

type Runtime struct {
	Impl struct {
		PullImage       func(ctx context.Context, host string, image string) error
		CreateContainer func(ctx context.Context, host string, spec docker.ContainerSpec) (string, error)
		StartContainer  func(ctx context.Context, host string, containerId string) error
		StopContainer   func(ctx context.Context, host string, containerId string) error
		RemoveContainer func(ctx context.Context, host string, containerId string) error
		GetBuildInfo    func(ctx context.Context, host string, containerId string) (docker.BuildInfo, error)
	}
	Called struct {
		PullImage []struct {
			Host  string
			Image string
		}
		CreateContainer []struct {
			Host string
			Spec docker.ContainerSpec
		}
		StartContainer  []ContainerCall
		StopContainer   []ContainerCall
		RemoveContainer []ContainerCall
		GetBuildInfo    []ContainerCall
	}
}

var _ docker.Runtime = &Runtime{}

func (m *Runtime) PullImage(ctx context.Context, host string, image string) error {
	m.Called.PullImage = append(m.Called.PullImage, struct {
		Host  string
		Image string
	}{Host: host, Image: image})
	if m.Impl.PullImage == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.PullImage(ctx, host, image)
}

func (m *Runtime) CreateContainer(ctx context.Context, host string, spec docker.ContainerSpec) (string, error) {
	m.Called.CreateContainer = append(m.Called.CreateContainer, struct {
		Host string
		Spec docker.ContainerSpec
	}{Host: host, Spec: spec})
	if m.Impl.CreateContainer == nil {
		return "", errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateContainer(ctx, host, spec)
}

func (m *Runtime) StartContainer(ctx context.Context, host string, containerId string) error {
	m.Called.StartContainer = append(m.Called.StartContainer, ContainerCall{Host: host, ContainerId: containerId})
	if m.Impl.StartContainer == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.StartContainer(ctx, host, containerId)
}

func (m *Runtime) StopContainer(ctx context.Context, host string, containerId string) error {
	m.Called.StopContainer = append(m.Called.StopContainer, ContainerCall{Host: host, ContainerId: containerId})
	if m.Impl.StopContainer == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.StopContainer(ctx, host, containerId)
}

func (m *Runtime) RemoveContainer(ctx context.Context, host string, containerId string) error {
	m.Called.RemoveContainer = append(m.Called.RemoveContainer, ContainerCall{Host: host, ContainerId: containerId})
	if m.Impl.RemoveContainer == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.RemoveContainer(ctx, host, containerId)
}

func (m *Runtime) GetBuildInfo(ctx context.Context, host string, containerId string) (docker.BuildInfo, error) {
	m.Called.GetBuildInfo = append(m.Called.GetBuildInfo, ContainerCall{Host: host, ContainerId: containerId})
	if m.Impl.GetBuildInfo == nil {
		return docker.BuildInfo{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetBuildInfo(ctx, host, containerId)
}
