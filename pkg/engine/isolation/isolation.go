// Package isolation resolves dependency graphs of instances, and manages Isolations and clusters built on them.
package isolation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/opst/drydock/pkg/domain"
	aicdb "github.com/opst/drydock/pkg/domain/autoisolation/db"
	builddb "github.com/opst/drydock/pkg/domain/build/db"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	instdb "github.com/opst/drydock/pkg/domain/instance/db"
	isodb "github.com/opst/drydock/pkg/domain/isolation/db"
	"github.com/opst/drydock/pkg/engine/builds"
	"github.com/opst/drydock/pkg/jobs"
)

// Resolver resolves requested dependencies of master instances.
type Resolver interface {
	// FetchDependentInstances resolves requested dependencies of the master.
	//
	// When the master is isolated, each dependency is replaced with its isolated child
	// in the same Isolation, if any.
	//
	// Dependencies whose instance is not found are left out.
	//
	// # Returns
	//
	// - []Instance: resolved instances, without duplicates.
	//
	// - error
	FetchDependentInstances(ctx context.Context, master domain.Instance) ([]domain.Instance, error)

	// FetchIsolationInstanceModel finds the child of dep forked into the Isolation.
	//
	// It returns dep itself when there are no such children.
	FetchIsolationInstanceModel(ctx context.Context, isolationId string, dep domain.Instance) (domain.Instance, error)
}

type IsolationRequest struct {
	MasterInstanceId string
	CreatedBy        string
	RedeployOnKilled bool
}

type AutoIsolationConfigRequest struct {
	// master instance. Optional.
	InstanceId string

	Dependencies     []domain.DependencySpec
	CreatedByUser    string
	OwnedByOrg       string
	RedeployOnKilled bool
}

type Service interface {
	Resolver

	// CreateClusterInstance builds and creates the Instance of a service in a cluster,
	// and registers it to the AutoIsolationConfig of the cluster.
	//
	// It is safe to be called twice for the same job.
	CreateClusterInstance(ctx context.Context, job jobs.ClusterInstanceCreate) (domain.Instance, error)

	// CreateIsolation isolates the master instance, and forks its dependencies into the Isolation.
	//
	// # Returns
	//
	// - error: ErrMissing when the master is not found. ErrConflict when it is isolated already.
	CreateIsolation(ctx context.Context, req IsolationRequest) (domain.Isolation, error)

	// DeleteIsolation releases the master, and deletes forked children.
	DeleteIsolation(ctx context.Context, isolationId string) (domain.Isolation, error)

	// CreateAutoIsolationConfig validates and stores requested dependencies.
	//
	// # Returns
	//
	// - error: ErrInvalidDependency or ErrDuplicateDependency for bad dependencies.
	// ErrMissing when the master instance is not found.
	CreateAutoIsolationConfig(ctx context.Context, req AutoIsolationConfigRequest) (domain.AutoIsolationConfig, error)
}

type service struct {
	instances      instdb.Interface
	builds         builddb.Interface
	isolations     isodb.Interface
	autoIsolations aicdb.Interface
	orchestrator   builds.Orchestrator
	publisher      jobs.Publisher
	logger         *log.Logger
}

type Deps struct {
	Instances            instdb.Interface
	Builds               builddb.Interface
	Isolations           isodb.Interface
	AutoIsolationConfigs aicdb.Interface
	Orchestrator         builds.Orchestrator
	Publisher            jobs.Publisher
}

func New(deps Deps, logger *log.Logger) Service {
	return &service{
		instances:      deps.Instances,
		builds:         deps.Builds,
		isolations:     deps.Isolations,
		autoIsolations: deps.AutoIsolationConfigs,
		orchestrator:   deps.Orchestrator,
		publisher:      deps.Publisher,
		logger:         logger,
	}
}

func (s *service) FetchDependentInstances(ctx context.Context, master domain.Instance) ([]domain.Instance, error) {
	config, err := s.autoIsolations.FindByInstance(ctx, master.InstanceId)
	if err != nil {
		if errors.Is(err, domerr.ErrMissing) {
			return []domain.Instance{}, nil
		}
		return nil, err
	}

	ret := []domain.Instance{}
	for _, dep := range config.RequestedDependencies {
		target, ok, err := s.resolve(ctx, dep)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Printf("dependency %s of instance %s is not found. skipped", dep.Key(), master.InstanceId)
			continue
		}
		if master.Isolated != "" {
			if target, err = s.FetchIsolationInstanceModel(ctx, master.Isolated, target); err != nil {
				return nil, err
			}
		}
		if target.InstanceId == master.InstanceId {
			continue
		}
		if slices.ContainsFunc(ret, func(i domain.Instance) bool { return i.InstanceId == target.InstanceId }) {
			continue
		}
		ret = append(ret, target)
	}
	return ret, nil
}

func (s *service) resolve(ctx context.Context, dep domain.Dependency) (domain.Instance, bool, error) {
	switch d := dep.(type) {
	case domain.InstanceDependency:
		found, err := s.instances.Get(ctx, []string{d.InstanceId})
		if err != nil {
			return domain.Instance{}, false, err
		}
		inst, ok := found[d.InstanceId]
		return inst, ok, nil
	case domain.RepoDependency:
		found, err := s.instances.Find(ctx, instdb.InstanceQuery{
			Owner:  d.Org,
			Repo:   strings.ToLower(d.Repo),
			Branch: strings.ToLower(d.Branch),
		})
		if err != nil {
			return domain.Instance{}, false, err
		}
		// the most recent, non-isolated one.
		for i := len(found) - 1; 0 <= i; i-- {
			if found[i].Isolated == "" {
				return found[i], true, nil
			}
		}
		return domain.Instance{}, false, nil
	}
	return domain.Instance{}, false, fmt.Errorf("%w: %T", domerr.ErrInvalidDependency, dep)
}

func (s *service) FetchIsolationInstanceModel(ctx context.Context, isolationId string, dep domain.Instance) (domain.Instance, error) {
	if dep.Isolated == isolationId {
		return dep, nil
	}
	children, err := s.instances.Find(ctx, instdb.InstanceQuery{Isolated: isolationId, ForkedFrom: dep.InstanceId})
	if err != nil {
		return domain.Instance{}, err
	}
	if len(children) == 0 {
		return dep, nil
	}
	return children[len(children)-1], nil
}

func (s *service) CreateClusterInstance(ctx context.Context, job jobs.ClusterInstanceCreate) (domain.Instance, error) {
	build, err := s.orchestrator.Request(ctx, builds.BuildRequest{
		Owner:           job.Owner,
		CreatedBy:       job.CreatedBy,
		TriggeredAction: job.TriggeredAction,
		Specs:           []domain.BuildSpec{job.Service.Build},
	})
	if err != nil {
		return domain.Instance{}, err
	}
	if len(build.ContextVersionIds) == 0 {
		return domain.Instance{}, fmt.Errorf("build %s has no context versions", build.BuildId)
	}
	cvId := build.ContextVersionIds[0]

	acv := job.Service.Build.AppCodeVersion.Normalized()
	name := job.Service.Name + "--" + job.InputClusterConfigId
	inst, err := s.instances.New(ctx, instdb.NewInstance{
		Name:             name,
		Owner:            job.Owner,
		CreatedBy:        job.CreatedBy,
		BuildId:          build.BuildId,
		ContextVersionId: cvId,
		Repo:             acv.Repo,
		Branch:           acv.Branch,
	})
	if errors.Is(err, domerr.ErrConflict) {
		// created by the previous attempt of this job.
		found, ferr := s.instances.Find(ctx, instdb.InstanceQuery{Owner: job.Owner, Name: name})
		if ferr != nil {
			return domain.Instance{}, ferr
		}
		if len(found) == 0 {
			return domain.Instance{}, err
		}
		inst = found[0]
		if inst.BuildId != build.BuildId {
			if inst, err = s.instances.SetBuild(ctx, inst.InstanceId, build.BuildId, cvId); err != nil {
				return domain.Instance{}, err
			}
		}
	} else if err != nil {
		return domain.Instance{}, err
	}

	// read again after the instance is bound, not to miss the build completing meanwhile.
	found, err := s.builds.Get(ctx, []string{build.BuildId})
	if err != nil {
		return domain.Instance{}, err
	}
	if latest, ok := found[build.BuildId]; ok {
		build = latest
	}
	if build.Successful() {
		if _, err := s.publisher.Publish(
			ctx,
			jobs.InstanceContainerCreate{
				InstanceId:       inst.InstanceId,
				BuildId:          build.BuildId,
				ContextVersionId: cvId,
				DeploymentUuid:   uuid.NewString(),
			},
			jobs.WithDedupeKey(jobs.KindInstanceContainerCreate+"/"+inst.InstanceId+"/"+build.BuildId),
		); err != nil {
			return domain.Instance{}, err
		}
	}

	if job.IsMain {
		if err := s.autoIsolations.SetInstance(ctx, job.AutoIsolationConfigId, inst.InstanceId); err != nil {
			return domain.Instance{}, err
		}
	} else {
		err := s.autoIsolations.PushDependency(
			ctx, job.AutoIsolationConfigId, domain.InstanceDependency{InstanceId: inst.InstanceId},
		)
		if err != nil && !errors.Is(err, domerr.ErrDuplicateDependency) {
			return domain.Instance{}, err
		}
	}

	if _, err := s.publisher.Publish(
		ctx, jobs.ClusterInstanceCreated{ClusterInstanceCreate: job, InstanceId: inst.InstanceId},
	); err != nil {
		return domain.Instance{}, err
	}
	return inst, nil
}

func (s *service) CreateIsolation(ctx context.Context, req IsolationRequest) (domain.Isolation, error) {
	found, err := s.instances.Get(ctx, []string{req.MasterInstanceId})
	if err != nil {
		return domain.Isolation{}, err
	}
	master, ok := found[req.MasterInstanceId]
	if !ok {
		return domain.Isolation{}, fmt.Errorf("%w: instance %s", domerr.ErrMissing, req.MasterInstanceId)
	}

	var iso domain.Isolation
	if master.Isolated != "" {
		// the previous request may have stopped halfway. resume its isolation.
		if iso, err = s.isolations.Get(ctx, master.Isolated); err != nil {
			return domain.Isolation{}, err
		}
		if iso.MasterInstanceId != master.InstanceId {
			return domain.Isolation{}, fmt.Errorf("%w: instance %s is isolated already", domerr.ErrConflict, master.InstanceId)
		}
		master.Isolated = ""
	}

	deps, err := s.FetchDependentInstances(ctx, master)
	if err != nil {
		return domain.Isolation{}, err
	}

	if iso.IsolationId == "" {
		if iso, err = s.isolations.New(ctx, isodb.NewIsolation{
			Owner:            master.Owner,
			CreatedBy:        req.CreatedBy,
			MasterInstanceId: master.InstanceId,
			RedeployOnKilled: req.RedeployOnKilled,
		}); err != nil {
			return domain.Isolation{}, err
		}
		if err := s.instances.SetIsolation(ctx, master.InstanceId, iso.IsolationId, true); err != nil {
			return domain.Isolation{}, err
		}
	}

	deploymentUuid := uuid.NewString()
	for _, dep := range deps {
		child, err := s.fork(ctx, iso, dep, req.CreatedBy)
		if err != nil {
			return domain.Isolation{}, err
		}
		if _, err := s.publisher.Publish(
			ctx, jobs.InstanceRedeploy{InstanceId: child.InstanceId, DeploymentUuid: deploymentUuid},
			jobs.WithDedupeKey(jobs.KindInstanceRedeploy+"/"+child.InstanceId+"/"+iso.IsolationId),
		); err != nil {
			return domain.Isolation{}, err
		}
	}
	return iso, nil
}

// fork creates the child of dep in the Isolation, or returns the one created already.
func (s *service) fork(ctx context.Context, iso domain.Isolation, dep domain.Instance, createdBy string) (domain.Instance, error) {
	forked, err := s.instances.Find(ctx, instdb.InstanceQuery{Isolated: iso.IsolationId, ForkedFrom: dep.InstanceId})
	if err != nil {
		return domain.Instance{}, err
	}
	if len(forked) != 0 {
		return forked[len(forked)-1], nil
	}
	return s.instances.New(ctx, instdb.NewInstance{
		Name:             dep.Name + "--" + iso.IsolationId,
		Owner:            dep.Owner,
		CreatedBy:        createdBy,
		BuildId:          dep.BuildId,
		ContextVersionId: dep.ContextVersionId,
		Repo:             dep.Repo,
		Branch:           dep.Branch,
		Isolated:         iso.IsolationId,
		ForkedFrom:       dep.InstanceId,
	})
}

func (s *service) DeleteIsolation(ctx context.Context, isolationId string) (domain.Isolation, error) {
	iso, err := s.isolations.Get(ctx, isolationId)
	if err != nil {
		return domain.Isolation{}, err
	}

	members, err := s.instances.Find(ctx, instdb.InstanceQuery{Isolated: isolationId})
	if err != nil {
		return domain.Isolation{}, err
	}
	for _, m := range members {
		if m.ForkedFrom == "" {
			if err := s.instances.SetIsolation(ctx, m.InstanceId, "", false); err != nil {
				return domain.Isolation{}, err
			}
			continue
		}
		if _, err := s.publisher.Publish(
			ctx, jobs.InstanceDelete{InstanceId: m.InstanceId},
			jobs.WithDedupeKey(jobs.KindInstanceDelete+"/"+m.InstanceId),
		); err != nil {
			return domain.Isolation{}, err
		}
	}

	if _, err := s.isolations.Delete(ctx, isolationId); err != nil {
		return domain.Isolation{}, err
	}
	return iso, nil
}

func (s *service) CreateAutoIsolationConfig(ctx context.Context, req AutoIsolationConfigRequest) (domain.AutoIsolationConfig, error) {
	deps := make([]domain.Dependency, 0, len(req.Dependencies))
	for _, spec := range req.Dependencies {
		d, err := spec.Dependency()
		if err != nil {
			return domain.AutoIsolationConfig{}, err
		}
		deps = append(deps, d)
	}
	if err := domain.ValidateDependencies(deps); err != nil {
		return domain.AutoIsolationConfig{}, err
	}

	if req.InstanceId != "" {
		found, err := s.instances.Get(ctx, []string{req.InstanceId})
		if err != nil {
			return domain.AutoIsolationConfig{}, err
		}
		if _, ok := found[req.InstanceId]; !ok {
			return domain.AutoIsolationConfig{}, fmt.Errorf("%w: instance %s", domerr.ErrMissing, req.InstanceId)
		}
	}

	return s.autoIsolations.New(ctx, aicdb.NewAutoIsolationConfig{
		InstanceId:            req.InstanceId,
		RequestedDependencies: deps,
		CreatedByUser:         req.CreatedByUser,
		OwnedByOrg:            req.OwnedByOrg,
		RedeployOnKilled:      req.RedeployOnKilled,
	})
}
