package jobs

import (
	"time"

	"github.com/opst/drydock/pkg/domain"
)

const (
	KindBuildContainerCreate     = "build.container.create"
	KindBuildContainerCreated    = "build.container.created"
	KindBuildContainerDied       = "build.container.died"
	KindInstanceContainerCreate  = "instance.container.create"
	KindInstanceContainerCreated = "instance.container.created"
	KindInstanceStart            = "instance.start"
	KindInstanceRedeploy         = "instance.redeploy"
	KindInstanceRebuild          = "instance.rebuild"
	KindInstanceKill             = "instance.kill"
	KindInstanceDelete           = "instance.delete"
	KindContainerDelete          = "container.delete"
	KindDockRemoved              = "dock.removed"
	KindDockPurged               = "dock.purged"
	KindIsolationKill            = "isolation.kill"
	KindIsolationRedeploy        = "isolation.redeploy"
	KindClusterInstanceCreate    = "cluster.instance.create"
	KindClusterInstanceCreated   = "cluster.instance.created"
)

// Payload is a content of a job.
type Payload interface {
	Kind() string
}

// create the image-builder container of the build record.
type BuildContainerCreate struct {
	ContextVersionId      string `json:"contextVersionId" validate:"required"`
	ContextVersionBuildId string `json:"contextVersionBuildId" validate:"required"`
}

func (BuildContainerCreate) Kind() string { return KindBuildContainerCreate }

// the image-builder container is created.
type BuildContainerCreated struct {
	ContextVersionId      string    `json:"contextVersionId" validate:"required"`
	ContextVersionBuildId string    `json:"contextVersionBuildId" validate:"required"`
	DockerHost            string    `json:"dockerHost" validate:"required"`
	DockerContainer       string    `json:"dockerContainer" validate:"required"`
	DockerTag             string    `json:"dockerTag" validate:"required"`
	Created               time.Time `json:"created" validate:"required"`
}

func (BuildContainerCreated) Kind() string { return KindBuildContainerCreated }

// the image-builder container has exited.
type BuildContainerDied struct {
	// id of the runtime event. The same event may be delivered more than once.
	EventId               string `json:"eventId" validate:"required"`
	ContextVersionBuildId string `json:"contextVersionBuildId" validate:"required"`
	DockerHost            string `json:"dockerHost" validate:"required"`
	DockerContainer       string `json:"dockerContainer" validate:"required"`
}

func (BuildContainerDied) Kind() string { return KindBuildContainerDied }

// deploy the Build onto the Instance.
type InstanceContainerCreate struct {
	InstanceId       string `json:"instanceId" validate:"required"`
	BuildId          string `json:"buildId" validate:"required"`
	ContextVersionId string `json:"contextVersionId" validate:"required"`
	DeploymentUuid   string `json:"deploymentUuid" validate:"required,uuid"`
}

func (InstanceContainerCreate) Kind() string { return KindInstanceContainerCreate }

// the instance container is created.
type InstanceContainerCreated struct {
	InstanceId       string `json:"instanceId" validate:"required"`
	BuildId          string `json:"buildId" validate:"required"`
	ContextVersionId string `json:"contextVersionId" validate:"required"`
	DeploymentUuid   string `json:"deploymentUuid" validate:"required,uuid"`
	DockerHost       string `json:"dockerHost" validate:"required"`
	DockerContainer  string `json:"dockerContainer" validate:"required"`
}

func (InstanceContainerCreated) Kind() string { return KindInstanceContainerCreated }

type InstanceStart struct {
	InstanceId      string `json:"instanceId" validate:"required"`
	DockerContainer string `json:"dockerContainer" validate:"required"`
}

func (InstanceStart) Kind() string { return KindInstanceStart }

// deploy the current Build onto the Instance again.
type InstanceRedeploy struct {
	InstanceId string `json:"instanceId" validate:"required"`

	// correlation id shared by jobs issued for the same cause.
	DeploymentUuid string `json:"deploymentUuid" validate:"required,uuid"`
}

func (InstanceRedeploy) Kind() string { return KindInstanceRedeploy }

// build the Instance's ContextVersion again, and deploy it.
type InstanceRebuild struct {
	InstanceId     string `json:"instanceId" validate:"required"`
	DeploymentUuid string `json:"deploymentUuid" validate:"required,uuid"`
}

func (InstanceRebuild) Kind() string { return KindInstanceRebuild }

type InstanceKill struct {
	InstanceId      string `json:"instanceId" validate:"required"`
	DockerContainer string `json:"dockerContainer" validate:"required"`
	IsolationId     string `json:"isolationId,omitempty"`
}

func (InstanceKill) Kind() string { return KindInstanceKill }

type InstanceDelete struct {
	InstanceId string `json:"instanceId" validate:"required"`
}

func (InstanceDelete) Kind() string { return KindInstanceDelete }

// remove a container which is no longer used.
type ContainerDelete struct {
	DockerHost      string `json:"dockerHost" validate:"required"`
	DockerContainer string `json:"dockerContainer" validate:"required"`
}

func (ContainerDelete) Kind() string { return KindContainerDelete }

type DockRemoved struct {
	Host string `json:"host" validate:"required"`
}

func (DockRemoved) Kind() string { return KindDockRemoved }

// everything on the dock has been taken care of.
type DockPurged struct {
	Host           string `json:"host" validate:"required"`
	DeploymentUuid string `json:"deploymentUuid" validate:"required,uuid"`
}

func (DockPurged) Kind() string { return KindDockPurged }

type IsolationKill struct {
	IsolationId string `json:"isolationId" validate:"required"`
}

func (IsolationKill) Kind() string { return KindIsolationKill }

type IsolationRedeploy struct {
	IsolationId string `json:"isolationId" validate:"required"`
}

func (IsolationRedeploy) Kind() string { return KindIsolationRedeploy }

// a service of a cluster.
type ClusterService struct {
	Name  string           `json:"name" validate:"required"`
	Build domain.BuildSpec `json:"build"`
}

// create the Instance of a service in the cluster.
type ClusterInstanceCreate struct {
	AutoIsolationConfigId string         `json:"autoIsolationConfigId" validate:"required"`
	InputClusterConfigId  string         `json:"inputClusterConfigId" validate:"required"`
	Service               ClusterService `json:"service"`

	// the main service becomes the master of the AutoIsolationConfig.
	IsMain bool `json:"isMain"`

	Owner           string `json:"owner" validate:"required"`
	CreatedBy       string `json:"createdBy" validate:"required"`
	TriggeredAction string `json:"triggeredAction" validate:"required"`
}

func (ClusterInstanceCreate) Kind() string { return KindClusterInstanceCreate }

type ClusterInstanceCreated struct {
	ClusterInstanceCreate
	InstanceId string `json:"instanceId" validate:"required"`
}

func (ClusterInstanceCreated) Kind() string { return KindClusterInstanceCreated }
