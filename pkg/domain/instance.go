package domain

import (
	"errors"
	"fmt"
	"time"
)

// ContainerPhase is a sub-state of an instance container.
//
//	none -> imagePull -> creating -> starting -> running -> stopping -> stopped
//
// imagePull and creating can fall into createError.
type ContainerPhase string

const (
	PhaseNone        ContainerPhase = "none"
	PhaseImagePull   ContainerPhase = "imagePull"
	PhaseCreating    ContainerPhase = "creating"
	PhaseStarting    ContainerPhase = "starting"
	PhaseRunning     ContainerPhase = "running"
	PhaseStopping    ContainerPhase = "stopping"
	PhaseStopped     ContainerPhase = "stopped"
	PhaseCreateError ContainerPhase = "createError"
)

func (p ContainerPhase) String() string {
	return string(p)
}

// Deploying tells a deployment is on going in the phase.
//
// Only one deployment can be on going for an instance at the same time.
func (p ContainerPhase) Deploying() bool {
	return p == PhaseImagePull || p == PhaseCreating
}

// Settled tells the container is not running and nothing is going on.
func (p ContainerPhase) Settled() bool {
	switch p {
	case PhaseNone, PhaseStopped, PhaseCreateError:
		return true
	}
	return false
}

var ErrUnknownContainerPhase = errors.New("unknown container phase")

func AsContainerPhase(s string) (ContainerPhase, error) {
	switch p := ContainerPhase(s); p {
	case PhaseNone, PhaseImagePull, PhaseCreating, PhaseStarting,
		PhaseRunning, PhaseStopping, PhaseStopped, PhaseCreateError:
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownContainerPhase, s)
}

// ContainerRef points a container on a dock.
type ContainerRef struct {
	DockerHost      string
	DockerContainer string
}

func (c ContainerRef) IsZero() bool {
	return c.DockerContainer == ""
}

type Container struct {
	ContainerRef
	Phase ContainerPhase

	// why the container could not be created. Set only in createError.
	Error string

	// correlation id of the deployment which put this container.
	DeploymentUuid string
}

type ImagePull struct {
	DockerHost string
	Started    time.Time
}

type Instance struct {
	InstanceId string
	Name       string
	Owner      string
	CreatedBy  string

	BuildId          string
	ContextVersionId string

	// lowercased repo and branch of the bound app code version.
	Repo   string
	Branch string

	Container Container
	ImagePull *ImagePull

	// isolation id, or empty when the instance is not isolated.
	Isolated               string
	IsIsolationGroupMaster bool

	// instance id which this instance is forked from in an isolation.
	ForkedFrom string

	CreatedAt time.Time
	SoftDelete
}
