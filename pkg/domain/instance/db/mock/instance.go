package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	kdb "github.com/opst/drydock/pkg/domain/instance/db"
	dbmock "github.com/opst/drydock/pkg/domain/internal/db/mock"
)

type InstanceInterface struct {
	Impl struct {
		New                      func(ctx context.Context, instance kdb.NewInstance) (domain.Instance, error)
		Get                      func(ctx context.Context, instanceIds []string) (map[string]domain.Instance, error)
		Find                     func(ctx context.Context, query kdb.InstanceQuery) ([]domain.Instance, error)
		SetBuild                 func(ctx context.Context, instanceId string, buildId string, contextVersionId string) (domain.Instance, error)
		SetImagePull             func(ctx context.Context, instanceId string, buildId string, deploymentUuid string, dockerHost string) (domain.Instance, error)
		UnsetImagePull           func(ctx context.Context, instanceId string, deploymentUuid string) error
		MarkAsCreating           func(ctx context.Context, instanceId string, deploymentUuid string) error
		ModifyContainerCreateErr func(ctx context.Context, instanceId string, deploymentUuid string, message string) error
		ModifyContainer          func(ctx context.Context, instanceId string, buildId string, deploymentUuid string, container domain.ContainerRef) (domain.Instance, domain.ContainerRef, error)
		MarkRunning              func(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error)
		MarkStopping             func(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error)
		MarkStopped              func(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error)
		ClearContainer           func(ctx context.Context, instanceId string) (domain.ContainerRef, error)
		ReleaseDock              func(ctx context.Context, instanceId string, dockerHost string) error
		SetIsolation             func(ctx context.Context, instanceId string, isolationId string, master bool) error
		Delete                   func(ctx context.Context, instanceId string) (domain.Instance, error)
	}

	Calls struct {
		New      dbmock.CallLog[kdb.NewInstance]
		Get      dbmock.CallLog[[]string]
		Find     dbmock.CallLog[kdb.InstanceQuery]
		SetBuild dbmock.CallLog[struct {
			InstanceId       string
			BuildId          string
			ContextVersionId string
		}]
		SetImagePull dbmock.CallLog[struct {
			InstanceId     string
			BuildId        string
			DeploymentUuid string
			DockerHost     string
		}]
		UnsetImagePull dbmock.CallLog[struct {
			InstanceId     string
			DeploymentUuid string
		}]
		MarkAsCreating dbmock.CallLog[struct {
			InstanceId     string
			DeploymentUuid string
		}]
		ModifyContainerCreateErr dbmock.CallLog[struct {
			InstanceId     string
			DeploymentUuid string
			Message        string
		}]
		ModifyContainer dbmock.CallLog[struct {
			InstanceId     string
			BuildId        string
			DeploymentUuid string
			Container      domain.ContainerRef
		}]
		MarkRunning dbmock.CallLog[struct {
			InstanceId      string
			DockerContainer string
		}]
		MarkStopping dbmock.CallLog[struct {
			InstanceId      string
			DockerContainer string
		}]
		MarkStopped dbmock.CallLog[struct {
			InstanceId      string
			DockerContainer string
		}]
		ClearContainer dbmock.CallLog[string]
		ReleaseDock    dbmock.CallLog[struct {
			InstanceId string
			DockerHost string
		}]
		SetIsolation dbmock.CallLog[struct {
			InstanceId  string
			IsolationId string
			Master      bool
		}]
		Delete dbmock.CallLog[string]
	}
}

func NewInstanceInterface() *InstanceInterface {
	return &InstanceInterface{}
}

var _ kdb.Interface = &InstanceInterface{}

func (m *InstanceInterface) New(ctx context.Context, instance kdb.NewInstance) (domain.Instance, error) {
	m.Calls.New = append(m.Calls.New, instance)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, instance)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) Get(ctx context.Context, instanceIds []string) (map[string]domain.Instance, error) {
	m.Calls.Get = append(m.Calls.Get, instanceIds)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, instanceIds)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) Find(ctx context.Context, query kdb.InstanceQuery) ([]domain.Instance, error) {
	m.Calls.Find = append(m.Calls.Find, query)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) SetBuild(ctx context.Context, instanceId string, buildId string, contextVersionId string) (domain.Instance, error) {
	m.Calls.SetBuild = append(m.Calls.SetBuild, struct {
		InstanceId       string
		BuildId          string
		ContextVersionId string
	}{InstanceId: instanceId, BuildId: buildId, ContextVersionId: contextVersionId})
	if m.Impl.SetBuild != nil {
		return m.Impl.SetBuild(ctx, instanceId, buildId, contextVersionId)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) SetImagePull(ctx context.Context, instanceId string, buildId string, deploymentUuid string, dockerHost string) (domain.Instance, error) {
	m.Calls.SetImagePull = append(m.Calls.SetImagePull, struct {
		InstanceId     string
		BuildId        string
		DeploymentUuid string
		DockerHost     string
	}{InstanceId: instanceId, BuildId: buildId, DeploymentUuid: deploymentUuid, DockerHost: dockerHost})
	if m.Impl.SetImagePull != nil {
		return m.Impl.SetImagePull(ctx, instanceId, buildId, deploymentUuid, dockerHost)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) UnsetImagePull(ctx context.Context, instanceId string, deploymentUuid string) error {
	m.Calls.UnsetImagePull = append(m.Calls.UnsetImagePull, struct {
		InstanceId     string
		DeploymentUuid string
	}{InstanceId: instanceId, DeploymentUuid: deploymentUuid})
	if m.Impl.UnsetImagePull != nil {
		return m.Impl.UnsetImagePull(ctx, instanceId, deploymentUuid)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) MarkAsCreating(ctx context.Context, instanceId string, deploymentUuid string) error {
	m.Calls.MarkAsCreating = append(m.Calls.MarkAsCreating, struct {
		InstanceId     string
		DeploymentUuid string
	}{InstanceId: instanceId, DeploymentUuid: deploymentUuid})
	if m.Impl.MarkAsCreating != nil {
		return m.Impl.MarkAsCreating(ctx, instanceId, deploymentUuid)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) ModifyContainerCreateErr(ctx context.Context, instanceId string, deploymentUuid string, message string) error {
	m.Calls.ModifyContainerCreateErr = append(m.Calls.ModifyContainerCreateErr, struct {
		InstanceId     string
		DeploymentUuid string
		Message        string
	}{InstanceId: instanceId, DeploymentUuid: deploymentUuid, Message: message})
	if m.Impl.ModifyContainerCreateErr != nil {
		return m.Impl.ModifyContainerCreateErr(ctx, instanceId, deploymentUuid, message)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) ModifyContainer(ctx context.Context, instanceId string, buildId string, deploymentUuid string, container domain.ContainerRef) (domain.Instance, domain.ContainerRef, error) {
	m.Calls.ModifyContainer = append(m.Calls.ModifyContainer, struct {
		InstanceId     string
		BuildId        string
		DeploymentUuid string
		Container      domain.ContainerRef
	}{InstanceId: instanceId, BuildId: buildId, DeploymentUuid: deploymentUuid, Container: container})
	if m.Impl.ModifyContainer != nil {
		return m.Impl.ModifyContainer(ctx, instanceId, buildId, deploymentUuid, container)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) MarkRunning(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error) {
	m.Calls.MarkRunning = append(m.Calls.MarkRunning, struct {
		InstanceId      string
		DockerContainer string
	}{InstanceId: instanceId, DockerContainer: dockerContainer})
	if m.Impl.MarkRunning != nil {
		return m.Impl.MarkRunning(ctx, instanceId, dockerContainer)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) MarkStopping(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error) {
	m.Calls.MarkStopping = append(m.Calls.MarkStopping, struct {
		InstanceId      string
		DockerContainer string
	}{InstanceId: instanceId, DockerContainer: dockerContainer})
	if m.Impl.MarkStopping != nil {
		return m.Impl.MarkStopping(ctx, instanceId, dockerContainer)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) MarkStopped(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error) {
	m.Calls.MarkStopped = append(m.Calls.MarkStopped, struct {
		InstanceId      string
		DockerContainer string
	}{InstanceId: instanceId, DockerContainer: dockerContainer})
	if m.Impl.MarkStopped != nil {
		return m.Impl.MarkStopped(ctx, instanceId, dockerContainer)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) ClearContainer(ctx context.Context, instanceId string) (domain.ContainerRef, error) {
	m.Calls.ClearContainer = append(m.Calls.ClearContainer, instanceId)
	if m.Impl.ClearContainer != nil {
		return m.Impl.ClearContainer(ctx, instanceId)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) ReleaseDock(ctx context.Context, instanceId string, dockerHost string) error {
	m.Calls.ReleaseDock = append(m.Calls.ReleaseDock, struct {
		InstanceId string
		DockerHost string
	}{InstanceId: instanceId, DockerHost: dockerHost})
	if m.Impl.ReleaseDock != nil {
		return m.Impl.ReleaseDock(ctx, instanceId, dockerHost)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) SetIsolation(ctx context.Context, instanceId string, isolationId string, master bool) error {
	m.Calls.SetIsolation = append(m.Calls.SetIsolation, struct {
		InstanceId  string
		IsolationId string
		Master      bool
	}{InstanceId: instanceId, IsolationId: isolationId, Master: master})
	if m.Impl.SetIsolation != nil {
		return m.Impl.SetIsolation(ctx, instanceId, isolationId, master)
	}

	panic(errors.New("it should not be called"))
}

func (m *InstanceInterface) Delete(ctx context.Context, instanceId string) (domain.Instance, error) {
	m.Calls.Delete = append(m.Calls.Delete, instanceId)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, instanceId)
	}

	panic(errors.New("it should not be called"))
}
