// Package instances coordinates runtime containers backing Instances.
//
// A deployment of an Instance goes as:
//
//	instance.container.create -> instance.container.created -> instance.start
//
// and each step is guarded by a conditional update keyed by the deployment uuid or the container id.
package instances

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/opst/drydock/pkg/domain"
	aicdb "github.com/opst/drydock/pkg/domain/autoisolation/db"
	builddb "github.com/opst/drydock/pkg/domain/build/db"
	cvdb "github.com/opst/drydock/pkg/domain/contextversion/db"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/domain/errors/runtimeerrors"
	instdb "github.com/opst/drydock/pkg/domain/instance/db"
	isodb "github.com/opst/drydock/pkg/domain/isolation/db"
	"github.com/opst/drydock/pkg/engine/builds"
	"github.com/opst/drydock/pkg/engine/isolation"
	"github.com/opst/drydock/pkg/jobs"
	"github.com/opst/drydock/pkg/workloads/billing"
	"github.com/opst/drydock/pkg/workloads/docker"
	"github.com/opst/drydock/pkg/workloads/notify"
	"github.com/opst/drydock/pkg/workloads/registry"
	"github.com/opst/drydock/pkg/workloads/scheduler"
	"golang.org/x/sync/errgroup"
)

// actions told to realtime clients.
const (
	ActionUpdate = "update"
	ActionStart  = "start"
	ActionStop   = "stop"
)

type Config struct {
	// images which are not found in the registry within this duration since
	// their build completed are waited for.
	ImagePushGrace time.Duration
}

type NewInstanceRequest struct {
	Name      string
	Owner     string
	CreatedBy string
	BuildId   string
}

type Coordinator interface {
	// CreateInstance creates an Instance bound to the Build.
	//
	// When the Build is completed successfully, the Instance is deployed at once.
	// Otherwise, it is deployed when the Build completes.
	CreateInstance(ctx context.Context, req NewInstanceRequest) (domain.Instance, error)

	// CreateContainer pulls the image and creates the container of the deployment.
	CreateContainer(ctx context.Context, job jobs.InstanceContainerCreate) error

	// OnContainerCreated records the created container, and queues to start it.
	OnContainerCreated(ctx context.Context, event jobs.InstanceContainerCreated) error

	StartContainer(ctx context.Context, job jobs.InstanceStart) error

	// Redeploy deploys the Instance again with the current Build.
	Redeploy(ctx context.Context, job jobs.InstanceRedeploy) error

	// Rebuild builds the ContextVersion of the Instance again, and binds the new Build.
	Rebuild(ctx context.Context, job jobs.InstanceRebuild) error

	// Kill stops the container of the Instance.
	Kill(ctx context.Context, job jobs.InstanceKill) error

	// Delete deletes the Instance with its container and its dependency records.
	Delete(ctx context.Context, job jobs.InstanceDelete) (domain.Instance, error)

	// DeleteContainer removes a container from a dock. Missing containers are ignored.
	DeleteContainer(ctx context.Context, job jobs.ContainerDelete) error

	// OnDockRemoved recovers Instances which have lost their dock.
	OnDockRemoved(ctx context.Context, event jobs.DockRemoved) error

	// KillIsolation kills the members of the Isolation and their dependencies.
	KillIsolation(ctx context.Context, job jobs.IsolationKill) error

	// RedeployIsolation redeploys the kill targets of a killed Isolation.
	RedeployIsolation(ctx context.Context, job jobs.IsolationRedeploy) error
}

type Deps struct {
	Instances            instdb.Interface
	ContextVersions      cvdb.Interface
	Builds               builddb.Interface
	Isolations           isodb.Interface
	AutoIsolationConfigs aicdb.Interface
	Orchestrator         builds.Orchestrator
	Resolver             isolation.Resolver
	Runtime              docker.Runtime
	Registry             registry.Registry
	Scheduler            scheduler.Scheduler
	Billing              billing.Billing
	Notifier             notify.Notifier
	Publisher            jobs.Publisher
}

type coordinator struct {
	config Config
	Deps
	logger *log.Logger
}

func New(config Config, deps Deps, logger *log.Logger) Coordinator {
	return &coordinator{config: config, Deps: deps, logger: logger}
}

func (c *coordinator) getInstance(ctx context.Context, instanceId string) (domain.Instance, error) {
	found, err := c.Instances.Get(ctx, []string{instanceId})
	if err != nil {
		return domain.Instance{}, err
	}
	inst, ok := found[instanceId]
	if !ok {
		return domain.Instance{}, fmt.Errorf("%w: instance %s", domerr.ErrMissing, instanceId)
	}
	return inst, nil
}

func (c *coordinator) getContextVersion(ctx context.Context, cvId string) (domain.ContextVersion, error) {
	found, err := c.ContextVersions.Get(ctx, []string{cvId})
	if err != nil {
		return domain.ContextVersion{}, err
	}
	cv, ok := found[cvId]
	if !ok {
		return domain.ContextVersion{}, fmt.Errorf("%w: context version %s", domerr.ErrMissing, cvId)
	}
	return cv, nil
}

func (c *coordinator) publishCreate(ctx context.Context, inst domain.Instance, deploymentUuid string) error {
	_, err := c.Publisher.Publish(
		ctx,
		jobs.InstanceContainerCreate{
			InstanceId:       inst.InstanceId,
			BuildId:          inst.BuildId,
			ContextVersionId: inst.ContextVersionId,
			DeploymentUuid:   deploymentUuid,
		},
		jobs.WithDedupeKey(jobs.KindInstanceContainerCreate+"/"+inst.InstanceId+"/"+inst.BuildId),
	)
	return err
}

// deployIfBuilt queues deploying the Instance when its Build has succeeded.
//
// The Build is read after the Instance is bound to it. A Build completing meanwhile
// deploys the Instance either here or on its completion, and the dedupe key collapses both.
func (c *coordinator) deployIfBuilt(ctx context.Context, inst domain.Instance, deploymentUuid string) error {
	found, err := c.Builds.Get(ctx, []string{inst.BuildId})
	if err != nil {
		return err
	}
	build, ok := found[inst.BuildId]
	if !ok {
		return fmt.Errorf("%w: build %s", domerr.ErrMissing, inst.BuildId)
	}
	if !build.Successful() {
		return nil
	}
	return c.publishCreate(ctx, inst, deploymentUuid)
}

func (c *coordinator) publishContainerDelete(ctx context.Context, ref domain.ContainerRef) error {
	if ref.IsZero() {
		return nil
	}
	_, err := c.Publisher.Publish(
		ctx,
		jobs.ContainerDelete{DockerHost: ref.DockerHost, DockerContainer: ref.DockerContainer},
		jobs.WithDedupeKey(jobs.KindContainerDelete+"/"+ref.DockerHost+"/"+ref.DockerContainer),
	)
	return err
}

func (c *coordinator) CreateInstance(ctx context.Context, req NewInstanceRequest) (domain.Instance, error) {
	found, err := c.Builds.Get(ctx, []string{req.BuildId})
	if err != nil {
		return domain.Instance{}, err
	}
	build, ok := found[req.BuildId]
	if !ok {
		return domain.Instance{}, fmt.Errorf("%w: build %s", domerr.ErrMissing, req.BuildId)
	}
	if len(build.ContextVersionIds) == 0 {
		return domain.Instance{}, fmt.Errorf("%w: build %s has no context versions", domerr.ErrValidation, build.BuildId)
	}
	cv, err := c.getContextVersion(ctx, build.ContextVersionIds[0])
	if err != nil {
		return domain.Instance{}, err
	}

	acv := cv.Inputs.AppCodeVersion.Normalized()
	inst, err := c.Instances.New(ctx, instdb.NewInstance{
		Name:             req.Name,
		Owner:            req.Owner,
		CreatedBy:        req.CreatedBy,
		BuildId:          build.BuildId,
		ContextVersionId: cv.ContextVersionId,
		Repo:             acv.Repo,
		Branch:           acv.Branch,
	})
	if err != nil {
		return domain.Instance{}, err
	}

	if err := c.deployIfBuilt(ctx, inst, uuid.NewString()); err != nil {
		return domain.Instance{}, err
	}
	return inst, nil
}

func (c *coordinator) CreateContainer(ctx context.Context, job jobs.InstanceContainerCreate) error {
	inst, err := c.getInstance(ctx, job.InstanceId)
	if err != nil {
		return err
	}
	if inst.BuildId != job.BuildId {
		return fmt.Errorf("%w: instance %s is bound to build %s, not %s", domerr.ErrStale, inst.InstanceId, inst.BuildId, job.BuildId)
	}
	cv, err := c.getContextVersion(ctx, job.ContextVersionId)
	if err != nil {
		return err
	}
	if cv.State != domain.BuildCompleted {
		return fmt.Errorf("%w: context version %s is %s", domerr.ErrStale, cv.ContextVersionId, cv.State)
	}

	host, err := c.Scheduler.FindDockForContainer(ctx, cv)
	if err != nil {
		return err
	}

	if _, err := c.Instances.SetImagePull(ctx, inst.InstanceId, job.BuildId, job.DeploymentUuid, host); err != nil {
		return err
	}

	image := cv.Build.DockerTag
	if err := c.pullImage(ctx, host, image, cv); err != nil {
		if errors.Is(err, registry.ErrImageNotFound) || errors.Is(err, registry.ErrUnauthorized) {
			if merr := c.Instances.ModifyContainerCreateErr(ctx, inst.InstanceId, job.DeploymentUuid, err.Error()); merr != nil {
				return errors.Join(err, merr)
			}
			if updated, gerr := c.getInstance(ctx, inst.InstanceId); gerr == nil {
				c.Notifier.EmitInstanceUpdate(ctx, updated, ActionUpdate)
			}
			if kerr := c.settleKilling(ctx, inst.InstanceId); kerr != nil {
				return errors.Join(err, kerr)
			}
			return fmt.Errorf("%w: %v", domerr.ErrMissing, err)
		}
		return err
	}

	if err := c.Instances.UnsetImagePull(ctx, inst.InstanceId, job.DeploymentUuid); err != nil {
		return err
	}
	if err := c.Instances.MarkAsCreating(ctx, inst.InstanceId, job.DeploymentUuid); err != nil {
		return err
	}

	containerId, err := c.Runtime.CreateContainer(ctx, host, docker.ContainerSpec{
		Image: image,
		Labels: map[string]string{
			docker.LabelInstanceId:       inst.InstanceId,
			docker.LabelContextVersionId: cv.ContextVersionId,
			docker.LabelDeploymentUuid:   job.DeploymentUuid,
			docker.LabelOwner:            inst.Owner,
		},
	})
	if err != nil {
		return err
	}

	_, err = c.Publisher.Publish(ctx, jobs.InstanceContainerCreated{
		InstanceId:       inst.InstanceId,
		BuildId:          job.BuildId,
		ContextVersionId: cv.ContextVersionId,
		DeploymentUuid:   job.DeploymentUuid,
		DockerHost:       host,
		DockerContainer:  containerId,
	})
	return err
}

// pullImage makes sure the image is on the dock.
//
// Images not found are reported as registry.ErrImageNotFound only after the push grace has passed.
func (c *coordinator) pullImage(ctx context.Context, host string, image string, cv domain.ContextVersion) error {
	inGrace := cv.Build.Completed != nil && time.Since(*cv.Build.Completed) < c.config.ImagePushGrace

	if _, err := c.Registry.Digest(ctx, image); err != nil {
		if errors.Is(err, registry.ErrImageNotFound) && inGrace {
			return fmt.Errorf("image %s is not pushed yet: %s", image, err)
		}
		return err
	}

	if err := c.Runtime.PullImage(ctx, host, image); err != nil {
		if runtimeerrors.AsMissing(err) {
			if inGrace {
				return fmt.Errorf("image %s is not pullable yet: %s", image, err)
			}
			return fmt.Errorf("%w: %s", registry.ErrImageNotFound, err)
		}
		return err
	}
	return nil
}

func (c *coordinator) OnContainerCreated(ctx context.Context, event jobs.InstanceContainerCreated) error {
	created := domain.ContainerRef{DockerHost: event.DockerHost, DockerContainer: event.DockerContainer}
	inst, prev, err := c.Instances.ModifyContainer(ctx, event.InstanceId, event.BuildId, event.DeploymentUuid, created)
	if err != nil {
		if !errors.Is(err, domerr.ErrInvalidStateChanging) && !errors.Is(err, domerr.ErrMissing) {
			return err
		}
		// the deployment is superseded. the created container is an orphan.
		if rerr := c.ContextVersions.Recover(ctx, event.ContextVersionId); rerr != nil && !errors.Is(rerr, domerr.ErrMissing) {
			return errors.Join(err, rerr)
		}
		if derr := c.publishContainerDelete(ctx, created); derr != nil {
			return errors.Join(err, derr)
		}
		return fmt.Errorf("%w: instance %s is not creating for deployment %s: %w", domerr.ErrMissing, event.InstanceId, event.DeploymentUuid, err)
	}

	if prev != created {
		if err := c.publishContainerDelete(ctx, prev); err != nil {
			return err
		}
	}

	if _, err := c.Publisher.Publish(ctx, jobs.InstanceStart{
		InstanceId: inst.InstanceId, DockerContainer: event.DockerContainer,
	}); err != nil {
		return err
	}
	c.Notifier.EmitInstanceUpdate(ctx, inst, ActionUpdate)
	return nil
}

func (c *coordinator) StartContainer(ctx context.Context, job jobs.InstanceStart) error {
	inst, err := c.getInstance(ctx, job.InstanceId)
	if err != nil {
		return err
	}
	if inst.Container.DockerContainer != job.DockerContainer {
		return fmt.Errorf(
			"%w: instance %s is not starting container %s (%s %s)",
			domerr.ErrStale, inst.InstanceId, job.DockerContainer, inst.Container.Phase, inst.Container.DockerContainer,
		)
	}

	switch inst.Container.Phase {
	case domain.PhaseStarting:
		if err := c.Runtime.StartContainer(ctx, inst.Container.DockerHost, job.DockerContainer); err != nil {
			if runtimeerrors.AsMissing(err) {
				return fmt.Errorf("%w: container %s is gone: %v", domerr.ErrMissing, job.DockerContainer, err)
			}
			return err
		}
		if inst, err = c.Instances.MarkRunning(ctx, inst.InstanceId, job.DockerContainer); err != nil {
			return err
		}
		c.Notifier.EmitInstanceUpdate(ctx, inst, ActionStart)
	case domain.PhaseRunning:
		// started by the previous attempt.
	default:
		return fmt.Errorf(
			"%w: instance %s is not starting container %s (%s)",
			domerr.ErrStale, inst.InstanceId, job.DockerContainer, inst.Container.Phase,
		)
	}

	return c.killIfTargeted(ctx, inst)
}

// killIfTargeted queues killing the running Instance for Isolations
// which started killing while the Instance was on its way to run.
func (c *coordinator) killIfTargeted(ctx context.Context, inst domain.Instance) error {
	killing, err := c.Isolations.FindKilling(ctx, inst.InstanceId)
	if err != nil {
		return err
	}
	for _, iso := range killing {
		if _, err := c.Publisher.Publish(
			ctx,
			jobs.InstanceKill{InstanceId: inst.InstanceId, DockerContainer: inst.Container.DockerContainer, IsolationId: iso.IsolationId},
			jobs.WithDedupeKey(jobs.KindInstanceKill+"/"+inst.InstanceId+"/"+inst.Container.DockerContainer),
		); err != nil {
			return err
		}
	}
	return nil
}

func (c *coordinator) Redeploy(ctx context.Context, job jobs.InstanceRedeploy) error {
	inst, err := c.getInstance(ctx, job.InstanceId)
	if err != nil {
		return err
	}
	cv, err := c.getContextVersion(ctx, inst.ContextVersionId)
	if err != nil {
		return err
	}
	if cv.State != domain.BuildCompleted {
		// when in progress, the instance is deployed as its build completes.
		return fmt.Errorf("%w: context version %s of instance %s is %s", domerr.ErrStale, cv.ContextVersionId, inst.InstanceId, cv.State)
	}
	return c.publishCreate(ctx, inst, job.DeploymentUuid)
}

func (c *coordinator) Rebuild(ctx context.Context, job jobs.InstanceRebuild) error {
	inst, err := c.getInstance(ctx, job.InstanceId)
	if err != nil {
		return err
	}
	cv, err := c.getContextVersion(ctx, inst.ContextVersionId)
	if err != nil {
		return err
	}

	if cv.State.InProgress() {
		// the build has lost its dock. it never completes.
		if err := c.ContextVersions.ErrorBuild(ctx, cv.ContextVersionId, "dock removed"); err != nil && !errors.Is(err, domerr.ErrInvalidStateChanging) {
			return err
		}
		if _, err := c.Builds.Resolve(ctx, []string{cv.ContextVersionId}); err != nil {
			return err
		}
	}

	build, err := c.Orchestrator.Request(ctx, builds.BuildRequest{
		Owner:           inst.Owner,
		CreatedBy:       inst.CreatedBy,
		TriggeredAction: "rebuild",
		Specs: []domain.BuildSpec{{
			ContextId:      cv.ContextId,
			Files:          cv.Inputs.Files,
			DockerfileHash: cv.Inputs.DockerfileHash,
			AppCodeVersion: cv.Inputs.AppCodeVersion,
			IsTesting:      cv.Inputs.IsTesting,
		}},
	})
	if err != nil {
		return err
	}
	if len(build.ContextVersionIds) == 0 {
		return fmt.Errorf("build %s has no context versions", build.BuildId)
	}

	rebound, err := c.Instances.SetBuild(ctx, inst.InstanceId, build.BuildId, build.ContextVersionIds[0])
	if err != nil {
		return err
	}
	return c.deployIfBuilt(ctx, rebound, job.DeploymentUuid)
}

func (c *coordinator) Kill(ctx context.Context, job jobs.InstanceKill) error {
	inst, err := c.getInstance(ctx, job.InstanceId)
	if err != nil {
		return err
	}
	if inst.Container.DockerContainer != job.DockerContainer {
		return fmt.Errorf("%w: instance %s does not have container %s", domerr.ErrStale, inst.InstanceId, job.DockerContainer)
	}

	switch inst.Container.Phase {
	case domain.PhaseRunning:
		if inst, err = c.Instances.MarkStopping(ctx, inst.InstanceId, job.DockerContainer); err != nil {
			return err
		}
		fallthrough
	case domain.PhaseStopping:
		err := c.Runtime.StopContainer(ctx, inst.Container.DockerHost, job.DockerContainer)
		if err != nil && !runtimeerrors.AsMissing(err) {
			return err
		}
		stopped, err := c.Instances.MarkStopped(ctx, inst.InstanceId, job.DockerContainer)
		if err != nil {
			return err
		}
		c.Notifier.EmitInstanceUpdate(ctx, stopped, ActionStop)
	case domain.PhaseStopped:
		// stopped by the previous attempt.
	default:
		return fmt.Errorf("%w: instance %s is %s", domerr.ErrStale, inst.InstanceId, inst.Container.Phase)
	}

	if job.IsolationId == "" {
		return nil
	}
	return c.checkIsolationKilled(ctx, job.IsolationId)
}

func (c *coordinator) checkIsolationKilled(ctx context.Context, isolationId string) error {
	iso, killed, err := c.Isolations.MarkKilledIfAllStopped(ctx, isolationId)
	if err != nil {
		return err
	}
	if !killed || !iso.RedeployOnKilled {
		return nil
	}
	_, err = c.Publisher.Publish(
		ctx, jobs.IsolationRedeploy{IsolationId: isolationId},
		jobs.WithDedupeKey(jobs.KindIsolationRedeploy+"/"+isolationId),
	)
	return err
}

// settleKilling checks Isolations killing the Instance, which ends without running.
func (c *coordinator) settleKilling(ctx context.Context, instanceId string) error {
	killing, err := c.Isolations.FindKilling(ctx, instanceId)
	if err != nil {
		return err
	}
	for _, iso := range killing {
		if err := c.checkIsolationKilled(ctx, iso.IsolationId); err != nil {
			return err
		}
	}
	return nil
}

func (c *coordinator) KillIsolation(ctx context.Context, job jobs.IsolationKill) error {
	iso, err := c.Isolations.Get(ctx, job.IsolationId)
	if err != nil {
		return err
	}

	members, err := c.Instances.Find(ctx, instdb.InstanceQuery{Isolated: iso.IsolationId})
	if err != nil {
		return err
	}
	targets := map[string]domain.Instance{}
	order := []string{}
	add := func(i domain.Instance) {
		if _, ok := targets[i.InstanceId]; ok {
			return
		}
		targets[i.InstanceId] = i
		order = append(order, i.InstanceId)
	}
	for _, m := range members {
		add(m)
	}
	if master, err := c.getInstance(ctx, iso.MasterInstanceId); err == nil {
		add(master)
		deps, err := c.Resolver.FetchDependentInstances(ctx, master)
		if err != nil {
			return err
		}
		for _, d := range deps {
			add(d)
		}
	} else if !errors.Is(err, domerr.ErrMissing) {
		return err
	}

	if _, err := c.Isolations.SetKilling(ctx, iso.IsolationId, order); err != nil {
		return err
	}

	queued := 0
	for _, id := range order {
		t := targets[id]
		// starting or stopping ones are left to their own jobs.
		if t.Container.Phase != domain.PhaseRunning {
			continue
		}
		if _, err := c.Publisher.Publish(
			ctx,
			jobs.InstanceKill{InstanceId: t.InstanceId, DockerContainer: t.Container.DockerContainer, IsolationId: iso.IsolationId},
			jobs.WithDedupeKey(jobs.KindInstanceKill+"/"+t.InstanceId+"/"+t.Container.DockerContainer),
		); err != nil {
			return err
		}
		queued += 1
	}

	if queued == 0 {
		return c.checkIsolationKilled(ctx, iso.IsolationId)
	}
	return nil
}

func (c *coordinator) RedeployIsolation(ctx context.Context, job jobs.IsolationRedeploy) error {
	iso, err := c.Isolations.Get(ctx, job.IsolationId)
	if err != nil {
		return err
	}
	if iso.State != domain.IsolationKilled {
		return fmt.Errorf("%w: isolation %s is %s", domerr.ErrStale, iso.IsolationId, iso.State)
	}

	found, err := c.Instances.Get(ctx, iso.KillTargets)
	if err != nil {
		return err
	}
	deploymentUuid := uuid.NewString()
	for _, id := range iso.KillTargets {
		if _, ok := found[id]; !ok {
			continue
		}
		if _, err := c.Publisher.Publish(
			ctx, jobs.InstanceRedeploy{InstanceId: id, DeploymentUuid: deploymentUuid},
			jobs.WithDedupeKey(jobs.KindInstanceRedeploy+"/"+id+"/"+iso.IsolationId),
		); err != nil {
			return err
		}
	}

	_, err = c.Isolations.SetRedeployed(ctx, iso.IsolationId)
	return err
}

func (c *coordinator) Delete(ctx context.Context, job jobs.InstanceDelete) (domain.Instance, error) {
	if err := c.AutoIsolationConfigs.RemoveInstance(ctx, job.InstanceId); err != nil {
		return domain.Instance{}, err
	}
	deleted, err := c.Instances.Delete(ctx, job.InstanceId)
	if err != nil {
		return domain.Instance{}, err
	}
	if err := c.publishContainerDelete(ctx, deleted.Container.ContainerRef); err != nil {
		return domain.Instance{}, err
	}
	c.Notifier.EmitInstanceDelete(ctx, deleted)
	return deleted, nil
}

func (c *coordinator) DeleteContainer(ctx context.Context, job jobs.ContainerDelete) error {
	err := c.Runtime.RemoveContainer(ctx, job.DockerHost, job.DockerContainer)
	if err != nil && !runtimeerrors.AsMissing(err) {
		return err
	}
	return nil
}

func (c *coordinator) OnDockRemoved(ctx context.Context, event jobs.DockRemoved) error {
	cvs, err := c.ContextVersions.MarkDockRemoved(ctx, event.Host)
	if err != nil {
		return err
	}
	building := []string{}
	for _, cv := range cvs {
		if cv.State.InProgress() {
			building = append(building, cv.ContextVersionId)
		}
	}

	deploymentUuid := uuid.NewString()

	var g errgroup.Group
	g.Go(func() error {
		return c.redeployOnDock(ctx, event.Host, deploymentUuid)
	})
	g.Go(func() error {
		return c.rebuildOnDock(ctx, event.Host, building, deploymentUuid)
	})
	passErr := g.Wait()

	_, pubErr := c.Publisher.Publish(
		ctx, jobs.DockPurged{Host: event.Host, DeploymentUuid: deploymentUuid},
		jobs.WithDedupeKey(jobs.KindDockPurged+"/"+event.Host),
	)
	return errors.Join(passErr, pubErr)
}

func (c *coordinator) redeployOnDock(ctx context.Context, host string, deploymentUuid string) error {
	lost, err := c.Instances.Find(ctx, instdb.InstanceQuery{
		DockerHost: host,
		Phases:     []domain.ContainerPhase{domain.PhaseStarting, domain.PhaseRunning},
	})
	if err != nil {
		return err
	}

	errs := []error{}
	for _, inst := range lost {
		permitted, err := c.Billing.IsPermitted(ctx, inst.Owner)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if permitted {
			// publish before releasing, so that a retry finds the instance still on the dock.
			if _, err := c.Publisher.Publish(
				ctx, jobs.InstanceRedeploy{InstanceId: inst.InstanceId, DeploymentUuid: deploymentUuid},
				jobs.WithDedupeKey(jobs.KindInstanceRedeploy+"/"+inst.InstanceId+"/"+host),
			); err != nil {
				errs = append(errs, err)
				continue
			}
		} else {
			c.logger.Printf("org %s is not permitted. instance %s is not redeployed", inst.Owner, inst.InstanceId)
		}

		if err := c.Instances.ReleaseDock(ctx, inst.InstanceId, host); err != nil {
			if errors.Is(err, domerr.ErrMissing) || errors.Is(err, domerr.ErrInvalidStateChanging) {
				c.logger.Printf("instance %s has left dock %s already: %v", inst.InstanceId, host, err)
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *coordinator) rebuildOnDock(ctx context.Context, host string, building []string, deploymentUuid string) error {
	if len(building) == 0 {
		return nil
	}
	bound, err := c.Instances.Find(ctx, instdb.InstanceQuery{ContextVersionIds: building})
	if err != nil {
		return err
	}

	errs := []error{}
	for _, inst := range bound {
		permitted, err := c.Billing.IsPermitted(ctx, inst.Owner)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !permitted {
			c.logger.Printf("org %s is not permitted. instance %s is not rebuilt", inst.Owner, inst.InstanceId)
			if _, err := c.Instances.ClearContainer(ctx, inst.InstanceId); err != nil && !errors.Is(err, domerr.ErrMissing) {
				errs = append(errs, err)
			}
			continue
		}
		if _, err := c.Publisher.Publish(
			ctx, jobs.InstanceRebuild{InstanceId: inst.InstanceId, DeploymentUuid: deploymentUuid},
			jobs.WithDedupeKey(jobs.KindInstanceRebuild+"/"+inst.InstanceId+"/"+host),
		); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
