// Package types defines JSON bodies of drydock API.
package types

import (
	"time"

	"github.com/opst/drydock/pkg/domain"
)

type BuildSpec struct {
	ContextId      string              `json:"contextId" validate:"required"`
	Files          []domain.SourceFile `json:"files" validate:"dive"`
	DockerfileHash string              `json:"dockerfileHash" validate:"required"`
	Repo           string              `json:"repo,omitempty"`
	Branch         string              `json:"branch,omitempty"`
	Commit         string              `json:"commit,omitempty"`
	IsTesting      bool                `json:"isTesting,omitempty"`
}

func (b BuildSpec) Domain() domain.BuildSpec {
	return domain.BuildSpec{
		ContextId:      b.ContextId,
		Files:          b.Files,
		DockerfileHash: b.DockerfileHash,
		AppCodeVersion: domain.AppCodeVersion{Repo: b.Repo, Branch: b.Branch, Commit: b.Commit},
		IsTesting:      b.IsTesting,
	}
}

// POST /api/builds
type BuildRequest struct {
	Owner           string      `json:"owner" validate:"required"`
	CreatedBy       string      `json:"createdBy" validate:"required"`
	TriggeredAction string      `json:"triggeredAction" validate:"required"`
	Specs           []BuildSpec `json:"specs" validate:"required,min=1,dive"`
}

type Build struct {
	BuildId           string     `json:"buildId"`
	BuildNumber       int64      `json:"buildNumber"`
	Owner             string     `json:"owner"`
	CreatedBy         string     `json:"createdBy"`
	ContextVersionIds []string   `json:"contextVersionIds"`
	Started           time.Time  `json:"started"`
	Completed         *time.Time `json:"completed,omitempty"`
	Failed            bool       `json:"failed"`
}

func ComposeBuild(b domain.Build) Build {
	cvs := b.ContextVersionIds
	if cvs == nil {
		cvs = []string{}
	}
	return Build{
		BuildId:           b.BuildId,
		BuildNumber:       b.BuildNumber,
		Owner:             b.Owner,
		CreatedBy:         b.CreatedBy,
		ContextVersionIds: cvs,
		Started:           b.Started,
		Completed:         b.Completed,
		Failed:            b.Failed,
	}
}

// POST /api/instances
type InstanceRequest struct {
	Name      string `json:"name" validate:"required"`
	Owner     string `json:"owner" validate:"required"`
	CreatedBy string `json:"createdBy" validate:"required"`
	BuildId   string `json:"buildId" validate:"required"`
}

type Container struct {
	Phase           string `json:"phase"`
	DockerHost      string `json:"dockerHost,omitempty"`
	DockerContainer string `json:"dockerContainer,omitempty"`
	Error           string `json:"error,omitempty"`
}

type Instance struct {
	InstanceId             string    `json:"instanceId"`
	Name                   string    `json:"name"`
	Owner                  string    `json:"owner"`
	BuildId                string    `json:"buildId"`
	ContextVersionId       string    `json:"contextVersionId,omitempty"`
	Container              Container `json:"container"`
	Isolated               string    `json:"isolated,omitempty"`
	IsIsolationGroupMaster bool      `json:"isIsolationGroupMaster"`
}

func ComposeInstance(i domain.Instance) Instance {
	return Instance{
		InstanceId:       i.InstanceId,
		Name:             i.Name,
		Owner:            i.Owner,
		BuildId:          i.BuildId,
		ContextVersionId: i.ContextVersionId,
		Container: Container{
			Phase:           i.Container.Phase.String(),
			DockerHost:      i.Container.DockerHost,
			DockerContainer: i.Container.DockerContainer,
			Error:           i.Container.Error,
		},
		Isolated:               i.Isolated,
		IsIsolationGroupMaster: i.IsIsolationGroupMaster,
	}
}

// POST /api/isolations
type IsolationRequest struct {
	MasterInstanceId string `json:"masterInstanceId" validate:"required"`
	CreatedBy        string `json:"createdBy" validate:"required"`
	RedeployOnKilled bool   `json:"redeployOnKilled"`
}

type Isolation struct {
	IsolationId      string `json:"isolationId"`
	Owner            string `json:"owner"`
	MasterInstanceId string `json:"masterInstanceId"`
	State            string `json:"state"`
	RedeployOnKilled bool   `json:"redeployOnKilled"`
}

func ComposeIsolation(i domain.Isolation) Isolation {
	return Isolation{
		IsolationId:      i.IsolationId,
		Owner:            i.Owner,
		MasterInstanceId: i.MasterInstanceId,
		State:            string(i.State),
		RedeployOnKilled: i.RedeployOnKilled,
	}
}

// POST /api/autoisolationconfigs
type AutoIsolationConfigRequest struct {
	InstanceId       string                  `json:"instanceId,omitempty"`
	Dependencies     []domain.DependencySpec `json:"dependencies"`
	CreatedByUser    string                  `json:"createdByUser" validate:"required"`
	OwnedByOrg       string                  `json:"ownedByOrg" validate:"required"`
	RedeployOnKilled bool                    `json:"redeployOnKilled"`
}

type AutoIsolationConfig struct {
	AutoIsolationConfigId string                  `json:"autoIsolationConfigId"`
	InstanceId            string                  `json:"instanceId,omitempty"`
	Dependencies          []domain.DependencySpec `json:"dependencies"`
	RedeployOnKilled      bool                    `json:"redeployOnKilled"`
}

func ComposeAutoIsolationConfig(a domain.AutoIsolationConfig) AutoIsolationConfig {
	deps := make([]domain.DependencySpec, 0, len(a.RequestedDependencies))
	for _, d := range a.RequestedDependencies {
		deps = append(deps, d.Spec())
	}
	return AutoIsolationConfig{
		AutoIsolationConfigId: a.AutoIsolationConfigId,
		InstanceId:            a.InstanceId,
		Dependencies:          deps,
		RedeployOnKilled:      a.RedeployOnKilled,
	}
}

type ClusterService struct {
	Name  string    `json:"name" validate:"required"`
	Build BuildSpec `json:"build"`
}

// POST /api/clusters
type ClusterRequest struct {
	Repo                       string           `json:"repo" validate:"required"`
	Branch                     string           `json:"branch" validate:"required"`
	IsTesting                  bool             `json:"isTesting"`
	Services                   []ClusterService `json:"services" validate:"required,min=1,dive"`
	MainService                string           `json:"mainService" validate:"required"`
	ParentInputClusterConfigId string           `json:"parentInputClusterConfigId,omitempty"`
	Owner                      string           `json:"owner" validate:"required"`
	CreatedBy                  string           `json:"createdBy" validate:"required"`
	TriggeredAction            string           `json:"triggeredAction" validate:"required"`
	RedeployOnKilled           bool             `json:"redeployOnKilled"`
}

type InputClusterConfig struct {
	InputClusterConfigId  string   `json:"inputClusterConfigId"`
	AutoIsolationConfigId string   `json:"autoIsolationConfigId"`
	Repo                  string   `json:"repo"`
	Branch                string   `json:"branch"`
	IsTesting             bool     `json:"isTesting"`
	Files                 []string `json:"files"`
	Reused                bool     `json:"reused"`
}

func ComposeInputClusterConfig(icc domain.InputClusterConfig, reused bool) InputClusterConfig {
	return InputClusterConfig{
		InputClusterConfigId:  icc.InputClusterConfigId,
		AutoIsolationConfigId: icc.AutoIsolationConfigId,
		Repo:                  icc.Repo,
		Branch:                icc.Branch,
		IsTesting:             icc.IsTesting,
		Files:                 icc.Files,
		Reused:                reused,
	}
}

// POST /api/events/containers/died
//
// reported by the runtime event watcher.
type ContainerDiedEvent struct {
	EventId         string            `json:"eventId" validate:"required"`
	DockerHost      string            `json:"dockerHost" validate:"required"`
	DockerContainer string            `json:"dockerContainer" validate:"required"`
	Labels          map[string]string `json:"labels"`
}

// POST /api/events/docks/removed
type DockRemovedEvent struct {
	Host string `json:"host" validate:"required"`
}

// response of requests handled asynchronously.
type Accepted struct {
	Kind string `json:"kind"`

	// false when the same request is in the queue already.
	Queued bool `json:"queued"`
}
