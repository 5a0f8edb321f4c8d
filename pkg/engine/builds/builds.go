// Package builds drives image-builder containers of ContextVersions.
//
//	Request -> build.container.create -> build.container.created -> build.container.died
//
// Each step is a job handler. Steps are guarded by conditional updates of ContextVersions,
// so a step delivered twice, or delivered after others moved forward, fails with
// ErrInvalidStateChanging and causes no side effects.
package builds

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/opst/drydock/pkg/domain"
	builddb "github.com/opst/drydock/pkg/domain/build/db"
	cvdb "github.com/opst/drydock/pkg/domain/contextversion/db"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/domain/errors/runtimeerrors"
	lockdb "github.com/opst/drydock/pkg/domain/eventlock/db"
	instdb "github.com/opst/drydock/pkg/domain/instance/db"
	"github.com/opst/drydock/pkg/engine/dedupe"
	"github.com/opst/drydock/pkg/jobs"
	"github.com/opst/drydock/pkg/workloads/docker"
	"github.com/opst/drydock/pkg/workloads/notify"
	"github.com/opst/drydock/pkg/workloads/registry"
	"github.com/opst/drydock/pkg/workloads/scheduler"
)

// actions told to realtime clients.
const (
	ActionBuildStarted   = "build_started"
	ActionBuildCompleted = "build_completed"
	ActionBuildErrored   = "build_errored"
)

type Config struct {
	// image of image-builder containers.
	BuilderImage string

	// registry host which built images are pushed to.
	Registry string

	// image-builder containers which can not be found within this duration
	// since their creation are waited for.
	ContainerNotFoundGrace time.Duration

	// how long a container-died event is locked.
	EventLockTTL time.Duration
}

type BuildRequest struct {
	Owner           string
	CreatedBy       string
	TriggeredAction string
	Specs           []domain.BuildSpec
}

type Orchestrator interface {
	// Request starts a Build.
	//
	// ContextVersions are reused when possible, and image-builders are queued
	// only for ContextVersions whose build is started by this request.
	//
	// # Returns
	//
	// - Build: the new Build. It is completed already when all ContextVersions are.
	//
	// - error: ErrValidation when no specs are given, or a spec has files sharing a path.
	Request(ctx context.Context, req BuildRequest) (domain.Build, error)

	// CreateContainer creates the image-builder container.
	CreateContainer(ctx context.Context, job jobs.BuildContainerCreate) error

	// OnContainerCreated moves the ContextVersions into buildStarting, and starts the container.
	OnContainerCreated(ctx context.Context, event jobs.BuildContainerCreated) error

	// OnContainerDied records the outcome of the image-builder,
	// resolves Builds and deploys successful builds to Instances.
	OnContainerDied(ctx context.Context, event jobs.BuildContainerDied) error
}

type orchestrator struct {
	config    Config
	cvs       cvdb.Interface
	builds    builddb.Interface
	instances instdb.Interface
	locks     lockdb.Interface
	dedupe    dedupe.Resolver
	runtime   docker.Runtime
	scheduler scheduler.Scheduler
	notifier  notify.Notifier
	publisher jobs.Publisher
	logger    *log.Logger
}

type Deps struct {
	ContextVersions cvdb.Interface
	Builds          builddb.Interface
	Instances       instdb.Interface
	EventLocks      lockdb.Interface
	Dedupe          dedupe.Resolver
	Runtime         docker.Runtime
	Scheduler       scheduler.Scheduler
	Notifier        notify.Notifier
	Publisher       jobs.Publisher
}

func New(config Config, deps Deps, logger *log.Logger) Orchestrator {
	return &orchestrator{
		config:    config,
		cvs:       deps.ContextVersions,
		builds:    deps.Builds,
		instances: deps.Instances,
		locks:     deps.EventLocks,
		dedupe:    deps.Dedupe,
		runtime:   deps.Runtime,
		scheduler: deps.Scheduler,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		logger:    logger,
	}
}

func (o *orchestrator) Request(ctx context.Context, req BuildRequest) (domain.Build, error) {
	if len(req.Specs) == 0 {
		return domain.Build{}, fmt.Errorf("%w: no containers to build", domerr.ErrValidation)
	}
	for _, spec := range req.Specs {
		if err := spec.Validate(); err != nil {
			return domain.Build{}, err
		}
	}

	cvIds := []string{}
	for _, spec := range req.Specs {
		cv, _, err := o.dedupe.ResolveOrCreate(ctx, req.Owner, req.CreatedBy, spec)
		if err != nil {
			return domain.Build{}, err
		}
		if !slices.Contains(cvIds, cv.ContextVersionId) {
			cvIds = append(cvIds, cv.ContextVersionId)
		}
	}

	build, err := o.builds.New(ctx, builddb.NewBuild{
		Owner: req.Owner, CreatedBy: req.CreatedBy, ContextVersionIds: cvIds,
	})
	if err != nil {
		return domain.Build{}, err
	}

	for _, cvId := range cvIds {
		cv, started, err := o.cvs.MarkRequested(ctx, cvId, req.TriggeredAction, req.CreatedBy)
		if err != nil {
			return domain.Build{}, err
		}
		if !started {
			continue
		}
		if _, err := o.publisher.Publish(ctx, jobs.BuildContainerCreate{
			ContextVersionId:      cv.ContextVersionId,
			ContextVersionBuildId: cv.Build.BuildId,
		}); err != nil {
			return domain.Build{}, err
		}
	}

	resolved, err := o.builds.Resolve(ctx, cvIds)
	if err != nil {
		return domain.Build{}, err
	}
	for _, b := range resolved {
		if b.BuildId == build.BuildId {
			return b, nil
		}
	}
	return build, nil
}

func (o *orchestrator) CreateContainer(ctx context.Context, job jobs.BuildContainerCreate) error {
	cv, err := o.getContextVersion(ctx, job.ContextVersionId)
	if err != nil {
		return err
	}
	if cv.Build.BuildId != job.ContextVersionBuildId {
		return fmt.Errorf("%w: build of %s is %s, not %s", domerr.ErrStale, cv.ContextVersionId, cv.Build.BuildId, job.ContextVersionBuildId)
	}
	if cv.State != domain.Created && cv.State != domain.BuildStarting {
		return fmt.Errorf("%w: %s is %s", domerr.ErrStale, cv.ContextVersionId, cv.State)
	}

	host, err := o.scheduler.FindDockForBuild(ctx, cv)
	if err != nil {
		return err
	}

	tag, err := registry.ImageTag(o.config.Registry, cv.Owner, cv.ContextVersionId)
	if err != nil {
		if cverr := o.cvs.ErrorBuild(ctx, cv.ContextVersionId, err.Error()); cverr != nil {
			return errors.Join(err, cverr)
		}
		return fmt.Errorf("%w: %s", domerr.ErrValidation, err)
	}

	acv := cv.Inputs.AppCodeVersion
	containerId, err := o.runtime.CreateContainer(ctx, host, docker.ContainerSpec{
		Image: o.config.BuilderImage,
		Env: []string{
			"DRYDOCK_IMAGE_TAG=" + tag,
			"DRYDOCK_REPO=" + acv.Repo,
			"DRYDOCK_BRANCH=" + acv.Branch,
			"DRYDOCK_COMMIT=" + acv.Commit,
			"DRYDOCK_DOCKERFILE_HASH=" + cv.Inputs.DockerfileHash,
			"DRYDOCK_FAILURE_MARKER=" + docker.FailureMarker,
		},
		Labels: map[string]string{
			docker.LabelContextVersionId: cv.ContextVersionId,
			docker.LabelBuildId:          cv.Build.BuildId,
			docker.LabelOwner:            cv.Owner,
		},
	})
	if err != nil {
		return err
	}

	_, err = o.publisher.Publish(ctx, jobs.BuildContainerCreated{
		ContextVersionId:      cv.ContextVersionId,
		ContextVersionBuildId: cv.Build.BuildId,
		DockerHost:            host,
		DockerContainer:       containerId,
		DockerTag:             tag,
		Created:               time.Now(),
	})
	return err
}

func (o *orchestrator) OnContainerCreated(ctx context.Context, event jobs.BuildContainerCreated) error {
	if _, err := o.cvs.MarkBuildStarting(ctx, event.ContextVersionBuildId, domain.BuildContainer{
		DockerHost:      event.DockerHost,
		DockerContainer: event.DockerContainer,
		DockerTag:       event.DockerTag,
	}); err != nil {
		return err
	}

	if err := o.runtime.StartContainer(ctx, event.DockerHost, event.DockerContainer); err != nil {
		if !runtimeerrors.AsMissing(err) {
			return err
		}
		if time.Since(event.Created) < o.config.ContainerNotFoundGrace {
			// not materialized yet. retry.
			return fmt.Errorf("image-builder container %s is not found yet: %w", event.DockerContainer, err)
		}
		return o.giveUp(ctx, event.ContextVersionBuildId, "image-builder container is not found")
	}

	started, err := o.cvs.MarkBuildStarted(ctx, event.ContextVersionBuildId, event.DockerContainer)
	if err != nil {
		return err
	}
	o.notifyContextVersions(ctx, started, ActionBuildStarted)
	return nil
}

// giveUp errors ContextVersions of the build record, and resolves Builds of them.
func (o *orchestrator) giveUp(ctx context.Context, cvBuildId string, message string) error {
	cvs, err := o.cvs.FindByBuild(ctx, cvBuildId)
	if err != nil {
		return err
	}
	errored := []string{}
	for _, cv := range cvs {
		if err := o.cvs.ErrorBuild(ctx, cv.ContextVersionId, message); err != nil {
			if errors.Is(err, domerr.ErrInvalidStateChanging) || errors.Is(err, domerr.ErrMissing) {
				continue
			}
			return err
		}
		errored = append(errored, cv.ContextVersionId)
	}
	if _, err := o.builds.Resolve(ctx, errored); err != nil {
		return err
	}
	o.notifyContextVersions(ctx, errored, ActionBuildErrored)
	return fmt.Errorf("%w: build %s: %s", domerr.ErrMissing, cvBuildId, message)
}

func (o *orchestrator) OnContainerDied(ctx context.Context, event jobs.BuildContainerDied) error {
	key := jobs.KindBuildContainerDied + ":" + event.EventId
	acquired, err := o.locks.Acquire(ctx, key, o.config.EventLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: event %s is being handled by another worker", domerr.ErrStale, event.EventId)
	}
	defer func() {
		if err := o.locks.Release(ctx, key); err != nil {
			o.logger.Printf("[warn] cannot release event lock %s: %s", key, err)
		}
	}()

	outcome := domain.BuildOutcome{}
	info, err := o.runtime.GetBuildInfo(ctx, event.DockerHost, event.DockerContainer)
	switch {
	case err == nil:
		outcome = domain.BuildOutcome{ExitCode: info.ExitCode, Failed: info.Failed, Log: info.Log}
		if !outcome.Successful() {
			outcome.Message = fmt.Sprintf("image-builder failed (exit code %d)", info.ExitCode)
		}
	case runtimeerrors.AsMissing(err):
		outcome = domain.BuildOutcome{ExitCode: -1, Failed: true, Message: "image-builder container is gone"}
	default:
		return err
	}

	finished, err := o.cvs.Finish(ctx, event.ContextVersionBuildId, event.DockerContainer, outcome)
	if err != nil {
		if errors.Is(err, domerr.ErrInvalidStateChanging) {
			return errors.Join(err, o.teardown(ctx, event))
		}
		return err
	}

	if _, err := o.builds.Resolve(ctx, finished); err != nil {
		return err
	}

	action := ActionBuildErrored
	if outcome.Successful() {
		action = ActionBuildCompleted
		if err := o.deploy(ctx, finished); err != nil {
			return err
		}
	}
	o.notifyContextVersions(ctx, finished, action)

	return o.teardown(ctx, event)
}

// deploy queues instance containers for Instances bound to the ContextVersions.
func (o *orchestrator) deploy(ctx context.Context, cvIds []string) error {
	instances, err := o.instances.Find(ctx, instdb.InstanceQuery{ContextVersionIds: cvIds})
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		o.logger.Printf("no instances are bound to context versions %v", cvIds)
		return nil
	}
	for _, inst := range instances {
		if _, err := o.publisher.Publish(
			ctx,
			jobs.InstanceContainerCreate{
				InstanceId:       inst.InstanceId,
				BuildId:          inst.BuildId,
				ContextVersionId: inst.ContextVersionId,
				DeploymentUuid:   uuid.NewString(),
			},
			jobs.WithDedupeKey(jobs.KindInstanceContainerCreate+"/"+inst.InstanceId+"/"+inst.BuildId),
		); err != nil {
			return err
		}
	}
	return nil
}

func (o *orchestrator) teardown(ctx context.Context, event jobs.BuildContainerDied) error {
	_, err := o.publisher.Publish(
		ctx,
		jobs.ContainerDelete{DockerHost: event.DockerHost, DockerContainer: event.DockerContainer},
		jobs.WithDedupeKey(jobs.KindContainerDelete+"/"+event.DockerHost+"/"+event.DockerContainer),
	)
	return err
}

func (o *orchestrator) getContextVersion(ctx context.Context, cvId string) (domain.ContextVersion, error) {
	cvs, err := o.cvs.Get(ctx, []string{cvId})
	if err != nil {
		return domain.ContextVersion{}, err
	}
	cv, ok := cvs[cvId]
	if !ok {
		return domain.ContextVersion{}, fmt.Errorf("%w: context version %s", domerr.ErrMissing, cvId)
	}
	return cv, nil
}

func (o *orchestrator) notifyContextVersions(ctx context.Context, cvIds []string, action string) {
	if len(cvIds) == 0 {
		return
	}
	cvs, err := o.cvs.Get(ctx, cvIds)
	if err != nil {
		o.logger.Printf("[warn] cannot notify context versions %v: %s", cvIds, err)
		return
	}
	for _, id := range cvIds {
		if cv, ok := cvs[id]; ok {
			o.notifier.EmitContextVersionUpdate(ctx, cv, action)
		}
	}
}
