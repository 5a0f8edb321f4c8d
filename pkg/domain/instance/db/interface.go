package db

import (
	"context"

	"github.com/opst/drydock/pkg/domain"
)

type NewInstance struct {
	Name      string
	Owner     string
	CreatedBy string

	BuildId          string
	ContextVersionId string

	Repo   string
	Branch string

	Isolated               string
	IsIsolationGroupMaster bool
	ForkedFrom             string
}

// InstanceQuery is a condition to find Instances.
//
// Zero-valued fields are ignored. Conditions are combined with AND.
// Deleted Instances never match.
type InstanceQuery struct {
	InstanceIds       []string
	ContextVersionIds []string
	BuildIds          []string
	Phases            []domain.ContainerPhase

	DockerHost string
	Isolated   string
	ForkedFrom string

	Owner  string
	Name   string
	Repo   string
	Branch string
}

// Interface is a repository of Instances.
//
// Container phase changing methods are conditional updates keyed by
// the deployment uuid or the container id. When the condition does not hold,
// they return ErrInvalidStateChanging (errors.Is), which means the caller is stale.
type Interface interface {
	// create a new Instance without container.
	//
	// # Returns
	//
	// - error: ErrConflict when the owner has another Instance with the same name.
	New(ctx context.Context, instance NewInstance) (domain.Instance, error)

	// get Instances by ids. Deleted ones are not included.
	Get(ctx context.Context, instanceIds []string) (map[string]domain.Instance, error)

	// find Instances matching the query, ordered by creation.
	Find(ctx context.Context, query InstanceQuery) ([]domain.Instance, error)

	// bind the Instance to another Build.
	//
	// # Returns
	//
	// - error: ErrMissing when the Instance is not found.
	SetBuild(ctx context.Context, instanceId string, buildId string, contextVersionId string) (domain.Instance, error)

	// start a deployment: the Instance enters imagePull phase.
	//
	// This succeeds only when the Instance is still bound to the Build.
	// A deployment going on is taken over: its deployment uuid is overwritten,
	// so the following steps of the older deployment are unmatched.
	SetImagePull(ctx context.Context, instanceId string, buildId string, deploymentUuid string, dockerHost string) (domain.Instance, error)

	// clear the image pull record of the deployment.
	UnsetImagePull(ctx context.Context, instanceId string, deploymentUuid string) error

	// imagePull -> creating, for the deployment.
	MarkAsCreating(ctx context.Context, instanceId string, deploymentUuid string) error

	// imagePull or creating -> createError, for the deployment.
	ModifyContainerCreateErr(ctx context.Context, instanceId string, deploymentUuid string, message string) error

	// creating -> starting, with the created container.
	//
	// This succeeds only when the Instance is still bound to the Build, and creating for the deployment.
	//
	// # Returns
	//
	// - Instance: updated one.
	//
	// - ContainerRef: the container which the Instance pointed before. Zero if not.
	//
	// - error
	ModifyContainer(ctx context.Context, instanceId string, buildId string, deploymentUuid string, container domain.ContainerRef) (domain.Instance, domain.ContainerRef, error)

	// starting -> running, for the container.
	MarkRunning(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error)

	// running -> stopping, for the container.
	MarkStopping(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error)

	// running or stopping -> stopped, for the container.
	MarkStopped(ctx context.Context, instanceId string, dockerContainer string) (domain.Instance, error)

	// forget the container of the Instance, whatever its phase is.
	//
	// # Returns
	//
	// - ContainerRef: forgotten container.
	//
	// - error: ErrMissing when the Instance is not found.
	ClearContainer(ctx context.Context, instanceId string) (domain.ContainerRef, error)

	// forget the container of the Instance, only when it is starting or running on the dock.
	//
	// # Returns
	//
	// - error: ErrInvalidStateChanging when the Instance is not on the dock (already moved, or redeployed).
	ReleaseDock(ctx context.Context, instanceId string, dockerHost string) error

	// put the Instance into the isolation, or take it out with empty isolationId.
	SetIsolation(ctx context.Context, instanceId string, isolationId string, master bool) error

	// delete the Instance (softly).
	//
	// # Returns
	//
	// - Instance: deleted one.
	//
	// - error: ErrMissing when the Instance is not found.
	Delete(ctx context.Context, instanceId string) (domain.Instance, error)
}
