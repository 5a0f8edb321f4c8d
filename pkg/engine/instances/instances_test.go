package instances_test

import (
	"context"
	"errors"
	"io"
	"log"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/opst/drydock/pkg/domain"
	aicmock "github.com/opst/drydock/pkg/domain/autoisolation/db/mock"
	buildmock "github.com/opst/drydock/pkg/domain/build/db/mock"
	cvmock "github.com/opst/drydock/pkg/domain/contextversion/db/mock"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	"github.com/opst/drydock/pkg/domain/errors/dberrors"
	"github.com/opst/drydock/pkg/domain/errors/runtimeerrors"
	instdb "github.com/opst/drydock/pkg/domain/instance/db"
	instmock "github.com/opst/drydock/pkg/domain/instance/db/mock"
	isomock "github.com/opst/drydock/pkg/domain/isolation/db/mock"
	"github.com/opst/drydock/pkg/engine/builds"
	buildsmock "github.com/opst/drydock/pkg/engine/builds/mock"
	"github.com/opst/drydock/pkg/engine/instances"
	isolationmock "github.com/opst/drydock/pkg/engine/isolation/mock"
	"github.com/opst/drydock/pkg/jobs"
	jobsmock "github.com/opst/drydock/pkg/jobs/mock"
	"github.com/opst/drydock/pkg/workloads/billing"
	billingmock "github.com/opst/drydock/pkg/workloads/billing/mock"
	"github.com/opst/drydock/pkg/workloads/docker"
	dockermock "github.com/opst/drydock/pkg/workloads/docker/mock"
	notifymock "github.com/opst/drydock/pkg/workloads/notify/mock"
	"github.com/opst/drydock/pkg/workloads/registry"
	registrymock "github.com/opst/drydock/pkg/workloads/registry/mock"
	schedmock "github.com/opst/drydock/pkg/workloads/scheduler/mock"
)

const deploymentUuid = "8c4f4a52-4a53-4b8c-9d8e-0d3b0d1f0a11"

type env struct {
	instances      *instmock.InstanceInterface
	cvs            *cvmock.ContextVersionInterface
	builds         *buildmock.BuildInterface
	isolations     *isomock.IsolationInterface
	autoIsolations *aicmock.AutoIsolationInterface
	orchestrator   *buildsmock.Orchestrator
	resolver       *isolationmock.Service
	runtime        *dockermock.Runtime
	registry       *registrymock.Registry
	scheduler      *schedmock.Scheduler
	billing        *billingmock.Billing
	notifier       *notifymock.Notifier
	publisher      *jobsmock.Publisher
}

func newEnv() *env {
	return &env{
		instances:      instmock.NewInstanceInterface(),
		cvs:            cvmock.NewContextVersionInterface(),
		builds:         buildmock.NewBuildInterface(),
		isolations:     isomock.NewIsolationInterface(),
		autoIsolations: aicmock.NewAutoIsolationInterface(),
		orchestrator:   &buildsmock.Orchestrator{},
		resolver:       &isolationmock.Service{},
		runtime:        &dockermock.Runtime{},
		registry:       &registrymock.Registry{},
		scheduler:      &schedmock.Scheduler{},
		billing:        &billingmock.Billing{},
		notifier:       &notifymock.Notifier{},
		publisher:      &jobsmock.Publisher{},
	}
}

var config = instances.Config{ImagePushGrace: 2 * time.Minute}

func (e *env) deps() instances.Deps {
	return instances.Deps{
		Instances:            e.instances,
		ContextVersions:      e.cvs,
		Builds:               e.builds,
		Isolations:           e.isolations,
		AutoIsolationConfigs: e.autoIsolations,
		Orchestrator:         e.orchestrator,
		Resolver:             e.resolver,
		Runtime:              e.runtime,
		Registry:             e.registry,
		Scheduler:            e.scheduler,
		Billing:              e.billing,
		Notifier:             e.notifier,
		Publisher:            e.publisher,
	}
}

func (e *env) testee() instances.Coordinator {
	return instances.New(config, e.deps(), log.New(io.Discard, "", 0))
}

func (e *env) existing(insts ...domain.Instance) {
	e.instances.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Instance, error) {
		ret := map[string]domain.Instance{}
		for _, i := range insts {
			if slices.Contains(ids, i.InstanceId) {
				ret[i.InstanceId] = i
			}
		}
		return ret, nil
	}
}

func (e *env) contextVersions(cvs ...domain.ContextVersion) {
	e.cvs.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.ContextVersion, error) {
		ret := map[string]domain.ContextVersion{}
		for _, cv := range cvs {
			if slices.Contains(ids, cv.ContextVersionId) {
				ret[cv.ContextVersionId] = cv
			}
		}
		return ret, nil
	}
}

func unmatched(id string) error {
	return dberrors.Unmatched{Table: "instance", Identity: id, Condition: "test"}
}

func TestCreateInstance(t *testing.T) {
	cv := domain.ContextVersion{
		ContextVersionId: "cv-1",
		Inputs:           domain.BuildInputs{AppCodeVersion: domain.AppCodeVersion{Repo: "Org-1/App", Branch: "Main"}},
	}
	completed := time.Now()

	type Then struct {
		deployed bool
		err      error
	}
	theory := func(build *domain.Build, then Then) func(*testing.T) {
		return func(t *testing.T) {
			e := newEnv()
			e.builds.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Build, error) {
				if build == nil {
					return map[string]domain.Build{}, nil
				}
				return map[string]domain.Build{build.BuildId: *build}, nil
			}
			e.contextVersions(cv)
			e.instances.Impl.New = func(ctx context.Context, n instdb.NewInstance) (domain.Instance, error) {
				return domain.Instance{
					InstanceId: "inst-1", Name: n.Name, BuildId: n.BuildId, ContextVersionId: n.ContextVersionId,
					Repo: n.Repo, Branch: n.Branch,
				}, nil
			}

			inst, err := e.testee().CreateInstance(context.Background(), instances.NewInstanceRequest{
				Name: "web", Owner: "org-1", CreatedBy: "user-1", BuildId: "build-1",
			})
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if inst.Repo != "org-1/app" || inst.Branch != "main" || inst.ContextVersionId != "cv-1" {
				t.Errorf("instance: %+v", inst)
			}
			deployed := jobsmock.OfKind[jobs.InstanceContainerCreate](e.publisher)
			if (len(deployed) == 1) != then.deployed {
				t.Errorf("deployed: %+v", deployed)
			}
		}
	}

	t.Run("an instance of a completed build is deployed at once", theory(
		&domain.Build{BuildId: "build-1", ContextVersionIds: []string{"cv-1"}, Completed: &completed},
		Then{deployed: true},
	))
	t.Run("an instance of a build in progress waits for the build", theory(
		&domain.Build{BuildId: "build-1", ContextVersionIds: []string{"cv-1"}},
		Then{deployed: false},
	))
	t.Run("an instance of a missing build is refused", theory(
		nil, Then{err: domerr.ErrMissing},
	))

	t.Run("an instance of a build completing while it is created is deployed", func(t *testing.T) {
		e := newEnv()
		reads := 0
		e.builds.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Build, error) {
			reads += 1
			build := domain.Build{BuildId: "build-1", ContextVersionIds: []string{"cv-1"}}
			if reads > 1 {
				// completed after the first read, without seeing the new instance.
				build.Completed = &completed
			}
			return map[string]domain.Build{build.BuildId: build}, nil
		}
		e.contextVersions(cv)
		e.instances.Impl.New = func(ctx context.Context, n instdb.NewInstance) (domain.Instance, error) {
			return domain.Instance{InstanceId: "inst-1", Name: n.Name, BuildId: n.BuildId, ContextVersionId: n.ContextVersionId}, nil
		}

		if _, err := e.testee().CreateInstance(context.Background(), instances.NewInstanceRequest{
			Name: "web", Owner: "org-1", CreatedBy: "user-1", BuildId: "build-1",
		}); err != nil {
			t.Fatal(err)
		}

		deployed := e.publisher.Published
		if len(deployed) != 1 {
			t.Fatalf("deployed: %+v", deployed)
		}
		if got := deployed[0].Options.DedupeKey; got != jobs.KindInstanceContainerCreate+"/inst-1/build-1" {
			t.Errorf("dedupe key: %s", got)
		}
	})
}

func TestCreateContainer(t *testing.T) {
	longAgo := time.Now().Add(-time.Hour)
	justNow := time.Now()

	inst := domain.Instance{InstanceId: "inst-1", Owner: "org-1", BuildId: "build-1", ContextVersionId: "cv-1"}
	cv := func(state domain.ContextVersionState, completed *time.Time) domain.ContextVersion {
		return domain.ContextVersion{
			ContextVersionId: "cv-1",
			State:            state,
			Build: domain.ContextVersionBuild{
				BuildId:        "cvb-1",
				BuildContainer: domain.BuildContainer{DockerTag: "registry.local:5000/org-1/cv-1:latest"},
				Completed:      completed,
			},
		}
	}
	job := jobs.InstanceContainerCreate{
		InstanceId: "inst-1", BuildId: "build-1", ContextVersionId: "cv-1", DeploymentUuid: deploymentUuid,
	}

	type When struct {
		job       jobs.InstanceContainerCreate
		cv        domain.ContextVersion
		digestErr error
		pullErr   error
		killing   []domain.Isolation
	}
	type Then struct {
		outcome     domain.JobStatus
		pulled      bool
		createError bool
		created     bool
		settled     []string
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			e := newEnv()
			e.existing(inst)
			e.contextVersions(when.cv)
			e.scheduler.Impl.FindDockForContainer = func(ctx context.Context, cv domain.ContextVersion) (string, error) {
				return "tcp://10.0.0.2:4242", nil
			}
			e.instances.Impl.SetImagePull = func(ctx context.Context, instanceId, buildId, uuid, host string) (domain.Instance, error) {
				return inst, nil
			}
			e.instances.Impl.UnsetImagePull = func(ctx context.Context, instanceId, uuid string) error { return nil }
			e.instances.Impl.MarkAsCreating = func(ctx context.Context, instanceId, uuid string) error { return nil }
			e.instances.Impl.ModifyContainerCreateErr = func(ctx context.Context, instanceId, uuid, message string) error { return nil }
			e.isolations.Impl.FindKilling = func(ctx context.Context, instanceId string) ([]domain.Isolation, error) {
				return when.killing, nil
			}
			e.isolations.Impl.MarkKilledIfAllStopped = func(ctx context.Context, isolationId string) (domain.Isolation, bool, error) {
				return domain.Isolation{IsolationId: isolationId, State: domain.IsolationKilled}, true, nil
			}
			e.registry.Impl.Digest = func(ctx context.Context, ref string) (string, error) {
				return "sha256:0123", when.digestErr
			}
			e.runtime.Impl.PullImage = func(ctx context.Context, host, image string) error { return when.pullErr }
			e.runtime.Impl.CreateContainer = func(ctx context.Context, host string, spec docker.ContainerSpec) (string, error) {
				return "container-9", nil
			}

			err := e.testee().CreateContainer(context.Background(), when.job)
			if got := jobs.Classify(err).Status(); got != then.outcome {
				t.Errorf("outcome: %s (%v)", got, err)
			}

			if got := len(e.runtime.Called.PullImage) == 1; got != then.pulled {
				t.Errorf("pulled: %v", got)
			}
			if got := e.instances.Calls.ModifyContainerCreateErr.Times() == 1; got != then.createError {
				t.Errorf("create error: %v", got)
			}
			if got := []string(e.isolations.Calls.MarkKilledIfAllStopped); !slices.Equal(got, then.settled) {
				t.Errorf("settled isolations: %v, want %v", got, then.settled)
			}

			created := jobsmock.OfKind[jobs.InstanceContainerCreated](e.publisher)
			if !then.created {
				if len(created) != 0 || len(e.runtime.Called.CreateContainer) != 0 {
					t.Errorf("unexpected container: %+v", created)
				}
				return
			}
			want := []jobs.InstanceContainerCreated{{
				InstanceId: "inst-1", BuildId: "build-1", ContextVersionId: "cv-1", DeploymentUuid: deploymentUuid,
				DockerHost: "tcp://10.0.0.2:4242", DockerContainer: "container-9",
			}}
			if !slices.Equal(created, want) {
				t.Errorf("created:\n===actual===\n%+v\n===expected===\n%+v", created, want)
			}
			spec := e.runtime.Called.CreateContainer[0].Spec
			if spec.Image != "registry.local:5000/org-1/cv-1:latest" || spec.Labels[docker.LabelDeploymentUuid] != deploymentUuid {
				t.Errorf("spec: %+v", spec)
			}
			if got := e.instances.Calls.MarkAsCreating.Times(); got != 1 {
				t.Errorf("MarkAsCreating is called %d times", got)
			}
		}
	}

	t.Run("it pulls the image and creates the container", theory(
		When{job: job, cv: cv(domain.BuildCompleted, &longAgo)},
		Then{outcome: domain.JobDone, pulled: true, created: true},
	))

	stale := job
	stale.BuildId = "build-0"
	t.Run("a job for the previous build is dropped", theory(
		When{job: stale, cv: cv(domain.BuildCompleted, &longAgo)},
		Then{outcome: domain.JobDropped},
	))

	t.Run("a job for an incomplete build is dropped", theory(
		When{job: job, cv: cv(domain.BuildStarted, nil)},
		Then{outcome: domain.JobDropped},
	))

	t.Run("an image not found in the registry is a permanent failure", theory(
		When{job: job, cv: cv(domain.BuildCompleted, &longAgo), digestErr: registry.ErrImageNotFound},
		Then{outcome: domain.JobDropped, createError: true},
	))

	t.Run("an instance failing to be created settles the isolation killing it", theory(
		When{
			job: job, cv: cv(domain.BuildCompleted, &longAgo), digestErr: registry.ErrImageNotFound,
			killing: []domain.Isolation{{IsolationId: "iso-1", State: domain.IsolationKilling, KillTargets: []string{"inst-1"}}},
		},
		Then{outcome: domain.JobDropped, createError: true, settled: []string{"iso-1"}},
	))

	t.Run("an image not found just after the build is waited for", theory(
		When{job: job, cv: cv(domain.BuildCompleted, &justNow), digestErr: registry.ErrImageNotFound},
		Then{outcome: domain.JobQueued},
	))

	t.Run("an unauthorized registry is a permanent failure", theory(
		When{job: job, cv: cv(domain.BuildCompleted, &longAgo), digestErr: registry.ErrUnauthorized},
		Then{outcome: domain.JobDropped, createError: true},
	))

	t.Run("a server error of the registry is retried", theory(
		When{job: job, cv: cv(domain.BuildCompleted, &longAgo), digestErr: errors.New("registry error: 500 Internal Server Error")},
		Then{outcome: domain.JobQueued},
	))

	t.Run("an image the dock can not find is a permanent failure", theory(
		When{job: job, cv: cv(domain.BuildCompleted, &longAgo), pullErr: runtimeerrors.NewMissing("manifest unknown")},
		Then{outcome: domain.JobDropped, pulled: true, createError: true},
	))

	t.Run("a pull failing with a server error is retried", theory(
		When{
			job: job, cv: cv(domain.BuildCompleted, &longAgo),
			pullErr: runtimeerrors.NewUnavailableCausedBy("pull", errors.New("500 Internal Server Error")),
		},
		Then{outcome: domain.JobQueued, pulled: true},
	))
}

func TestOnContainerCreated(t *testing.T) {
	event := jobs.InstanceContainerCreated{
		InstanceId: "inst-1", BuildId: "build-1", ContextVersionId: "cv-1", DeploymentUuid: deploymentUuid,
		DockerHost: "tcp://10.0.0.2:4242", DockerContainer: "container-9",
	}

	t.Run("it records the container and queues to start it", func(t *testing.T) {
		e := newEnv()
		prev := domain.ContainerRef{DockerHost: "tcp://10.0.0.1:4242", DockerContainer: "container-1"}
		e.instances.Impl.ModifyContainer = func(ctx context.Context, instanceId, buildId, uuid string, c domain.ContainerRef) (domain.Instance, domain.ContainerRef, error) {
			return domain.Instance{InstanceId: instanceId, Container: domain.Container{ContainerRef: c, Phase: domain.PhaseStarting}}, prev, nil
		}

		if err := e.testee().OnContainerCreated(context.Background(), event); err != nil {
			t.Fatal(err)
		}

		started := jobsmock.OfKind[jobs.InstanceStart](e.publisher)
		if !slices.Equal(started, []jobs.InstanceStart{{InstanceId: "inst-1", DockerContainer: "container-9"}}) {
			t.Errorf("started: %+v", started)
		}
		deleted := jobsmock.OfKind[jobs.ContainerDelete](e.publisher)
		if !slices.Equal(deleted, []jobs.ContainerDelete{{DockerHost: prev.DockerHost, DockerContainer: prev.DockerContainer}}) {
			t.Errorf("deleted: %+v", deleted)
		}
		if n := e.notifier.Called.EmitInstanceUpdate; len(n) != 1 || n[0].Action != instances.ActionUpdate {
			t.Errorf("notified: %+v", n)
		}
	})

	t.Run("a stale event recovers the context version and discards the container", func(t *testing.T) {
		e := newEnv()
		e.instances.Impl.ModifyContainer = func(ctx context.Context, instanceId, buildId, uuid string, c domain.ContainerRef) (domain.Instance, domain.ContainerRef, error) {
			return domain.Instance{}, domain.ContainerRef{}, unmatched(instanceId)
		}
		e.cvs.Impl.Recover = func(ctx context.Context, cvId string) error { return nil }

		err := e.testee().OnContainerCreated(context.Background(), event)
		if !errors.Is(err, domerr.ErrMissing) {
			t.Errorf("unexpected error: %v", err)
		}
		if got := jobs.Classify(err).Status(); got != domain.JobDropped {
			t.Errorf("outcome: %s", got)
		}
		if got := e.cvs.Calls.Recover.Last(); got != "cv-1" {
			t.Errorf("recovered: %s", got)
		}
		deleted := jobsmock.OfKind[jobs.ContainerDelete](e.publisher)
		if !slices.Equal(deleted, []jobs.ContainerDelete{{DockerHost: event.DockerHost, DockerContainer: event.DockerContainer}}) {
			t.Errorf("deleted: %+v", deleted)
		}
		if n := len(jobsmock.OfKind[jobs.InstanceStart](e.publisher)); n != 0 {
			t.Errorf("start is queued %d times", n)
		}
	})
}

func TestStartContainer(t *testing.T) {
	starting := domain.Instance{
		InstanceId: "inst-1",
		Container: domain.Container{
			ContainerRef: domain.ContainerRef{DockerHost: "tcp://10.0.0.2:4242", DockerContainer: "container-9"},
			Phase:        domain.PhaseStarting,
		},
	}

	type When struct {
		instance domain.Instance
		startErr error
		killing  []domain.Isolation
	}
	type Then struct {
		outcome domain.JobStatus
		started bool
		killed  []jobs.InstanceKill
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			e := newEnv()
			e.existing(when.instance)
			e.runtime.Impl.StartContainer = func(ctx context.Context, host, id string) error { return when.startErr }
			e.instances.Impl.MarkRunning = func(ctx context.Context, instanceId, container string) (domain.Instance, error) {
				running := when.instance
				running.Container.Phase = domain.PhaseRunning
				return running, nil
			}
			e.isolations.Impl.FindKilling = func(ctx context.Context, instanceId string) ([]domain.Isolation, error) {
				return when.killing, nil
			}

			err := e.testee().StartContainer(context.Background(), jobs.InstanceStart{InstanceId: "inst-1", DockerContainer: "container-9"})
			if got := jobs.Classify(err).Status(); got != then.outcome {
				t.Errorf("outcome: %s (%v)", got, err)
			}
			if got := e.instances.Calls.MarkRunning.Times() == 1; got != then.started {
				t.Errorf("started: %v", got)
			}
			if then.started {
				if n := e.notifier.Called.EmitInstanceUpdate; len(n) != 1 || n[0].Action != instances.ActionStart {
					t.Errorf("notified: %+v", n)
				}
			}
			if killed := jobsmock.OfKind[jobs.InstanceKill](e.publisher); !slices.Equal(killed, then.killed) {
				t.Errorf("killed:\n===actual===\n%+v\n===expected===\n%+v", killed, then.killed)
			}
		}
	}

	t.Run("it starts the container", theory(
		When{instance: starting},
		Then{outcome: domain.JobDone, started: true},
	))

	t.Run("a container started while its isolation is killing is killed", theory(
		When{
			instance: starting,
			killing:  []domain.Isolation{{IsolationId: "iso-1", State: domain.IsolationKilling, KillTargets: []string{"inst-1"}}},
		},
		Then{
			outcome: domain.JobDone, started: true,
			killed: []jobs.InstanceKill{{InstanceId: "inst-1", DockerContainer: "container-9", IsolationId: "iso-1"}},
		},
	))

	running := starting
	running.Container.Phase = domain.PhaseRunning
	t.Run("a retried job for a running container only checks killing isolations", theory(
		When{
			instance: running,
			killing:  []domain.Isolation{{IsolationId: "iso-1", State: domain.IsolationKilling, KillTargets: []string{"inst-1"}}},
		},
		Then{
			outcome: domain.JobDone, started: false,
			killed: []jobs.InstanceKill{{InstanceId: "inst-1", DockerContainer: "container-9", IsolationId: "iso-1"}},
		},
	))

	replaced := starting
	replaced.Container.DockerContainer = "container-10"
	t.Run("a job for a replaced container is dropped", theory(
		When{instance: replaced},
		Then{outcome: domain.JobDropped},
	))

	cleared := starting
	cleared.Container = domain.Container{Phase: domain.PhaseNone}
	t.Run("a job for a container lost with its dock is dropped", theory(
		When{instance: cleared},
		Then{outcome: domain.JobDropped},
	))

	t.Run("a vanished container is dropped", theory(
		When{instance: starting, startErr: runtimeerrors.NewMissing("no such container")},
		Then{outcome: domain.JobDropped},
	))

	t.Run("an unavailable dock is retried", theory(
		When{instance: starting, startErr: runtimeerrors.NewUnavailableCausedBy("start", errors.New("connection refused"))},
		Then{outcome: domain.JobQueued},
	))
}

func TestRedeploy(t *testing.T) {
	inst := domain.Instance{InstanceId: "inst-1", BuildId: "build-1", ContextVersionId: "cv-1"}

	t.Run("it deploys the current build again", func(t *testing.T) {
		e := newEnv()
		e.existing(inst)
		e.contextVersions(domain.ContextVersion{ContextVersionId: "cv-1", State: domain.BuildCompleted})

		if err := e.testee().Redeploy(context.Background(), jobs.InstanceRedeploy{InstanceId: "inst-1", DeploymentUuid: deploymentUuid}); err != nil {
			t.Fatal(err)
		}
		want := []jobs.InstanceContainerCreate{{
			InstanceId: "inst-1", BuildId: "build-1", ContextVersionId: "cv-1", DeploymentUuid: deploymentUuid,
		}}
		if got := jobsmock.OfKind[jobs.InstanceContainerCreate](e.publisher); !slices.Equal(got, want) {
			t.Errorf("deployed: %+v", got)
		}
	})

	t.Run("an instance whose build is in progress is left to the build", func(t *testing.T) {
		e := newEnv()
		e.existing(inst)
		e.contextVersions(domain.ContextVersion{ContextVersionId: "cv-1", State: domain.BuildStarted})

		err := e.testee().Redeploy(context.Background(), jobs.InstanceRedeploy{InstanceId: "inst-1", DeploymentUuid: deploymentUuid})
		if !errors.Is(err, domerr.ErrStale) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(e.publisher.Published) != 0 {
			t.Errorf("published: %+v", e.publisher.Published)
		}
	})
}

func TestRebuild(t *testing.T) {
	inst := domain.Instance{InstanceId: "inst-1", Owner: "org-1", CreatedBy: "user-1", BuildId: "build-1", ContextVersionId: "cv-1"}
	cv := domain.ContextVersion{
		ContextVersionId: "cv-1",
		ContextId:        "ctx-1",
		State:            domain.BuildStarted,
		Inputs: domain.BuildInputs{
			Files:          []domain.SourceFile{{Path: "main.go", Hash: "h"}},
			DockerfileHash: "df",
			AppCodeVersion: domain.AppCodeVersion{Repo: "org-1/app", Branch: "main", Commit: "c0ffee"},
		},
	}

	e := newEnv()
	e.existing(inst)
	e.contextVersions(cv)
	e.cvs.Impl.ErrorBuild = func(ctx context.Context, cvId, message string) error { return nil }
	e.builds.Impl.Resolve = func(ctx context.Context, cvIds []string) ([]domain.Build, error) {
		return []domain.Build{}, nil
	}
	e.orchestrator.Impl.Request = func(ctx context.Context, req builds.BuildRequest) (domain.Build, error) {
		return domain.Build{BuildId: "build-2", ContextVersionIds: []string{"cv-2"}}, nil
	}
	e.instances.Impl.SetBuild = func(ctx context.Context, instanceId, buildId, cvId string) (domain.Instance, error) {
		return domain.Instance{InstanceId: instanceId, BuildId: buildId, ContextVersionId: cvId}, nil
	}
	e.builds.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Build, error) {
		return map[string]domain.Build{"build-2": {BuildId: "build-2", ContextVersionIds: []string{"cv-2"}}}, nil
	}

	if err := e.testee().Rebuild(context.Background(), jobs.InstanceRebuild{InstanceId: "inst-1", DeploymentUuid: deploymentUuid}); err != nil {
		t.Fatal(err)
	}

	if got := e.cvs.Calls.ErrorBuild.Last(); got.ContextVersionId != "cv-1" {
		t.Errorf("errored: %+v", got)
	}
	req := e.orchestrator.Called.Request
	if len(req) != 1 || req[0].Specs[0].ContextId != "ctx-1" || req[0].Specs[0].AppCodeVersion.Commit != "c0ffee" {
		t.Errorf("request: %+v", req)
	}
	if got := e.instances.Calls.SetBuild.Last(); got.BuildId != "build-2" || got.ContextVersionId != "cv-2" {
		t.Errorf("rebound: %+v", got)
	}
	if n := len(jobsmock.OfKind[jobs.InstanceContainerCreate](e.publisher)); n != 0 {
		t.Errorf("deployed before the build: %d", n)
	}

	t.Run("a build completing while the instance is rebound deploys it", func(t *testing.T) {
		completed := time.Now()
		e.publisher.Published = nil
		e.builds.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Build, error) {
			return map[string]domain.Build{
				"build-2": {BuildId: "build-2", ContextVersionIds: []string{"cv-2"}, Completed: &completed},
			}, nil
		}

		if err := e.testee().Rebuild(context.Background(), jobs.InstanceRebuild{InstanceId: "inst-1", DeploymentUuid: deploymentUuid}); err != nil {
			t.Fatal(err)
		}
		want := []jobs.InstanceContainerCreate{{
			InstanceId: "inst-1", BuildId: "build-2", ContextVersionId: "cv-2", DeploymentUuid: deploymentUuid,
		}}
		if got := jobsmock.OfKind[jobs.InstanceContainerCreate](e.publisher); !slices.Equal(got, want) {
			t.Errorf("deployed: %+v", got)
		}
	})
}

// cluster keeps instances and an isolation for kill scenarios.
type cluster struct {
	instances map[string]domain.Instance
	isolation domain.Isolation
}

func (c *cluster) install(e *env) {
	e.instances.Impl.Get = func(ctx context.Context, ids []string) (map[string]domain.Instance, error) {
		ret := map[string]domain.Instance{}
		for _, id := range ids {
			if i, ok := c.instances[id]; ok {
				ret[id] = i
			}
		}
		return ret, nil
	}
	e.instances.Impl.Find = func(ctx context.Context, q instdb.InstanceQuery) ([]domain.Instance, error) {
		ret := []domain.Instance{}
		for _, id := range []string{"a", "b"} {
			if i, ok := c.instances[id]; ok && i.Isolated == q.Isolated {
				ret = append(ret, i)
			}
		}
		return ret, nil
	}
	setPhase := func(id string, p domain.ContainerPhase) domain.Instance {
		i := c.instances[id]
		i.Container.Phase = p
		c.instances[id] = i
		return i
	}
	e.instances.Impl.MarkStopping = func(ctx context.Context, id, container string) (domain.Instance, error) {
		return setPhase(id, domain.PhaseStopping), nil
	}
	e.instances.Impl.MarkStopped = func(ctx context.Context, id, container string) (domain.Instance, error) {
		return setPhase(id, domain.PhaseStopped), nil
	}
	e.runtime.Impl.StopContainer = func(ctx context.Context, host, id string) error { return nil }

	e.isolations.Impl.Get = func(ctx context.Context, id string) (domain.Isolation, error) {
		return c.isolation, nil
	}
	e.isolations.Impl.SetKilling = func(ctx context.Context, id string, targets []string) (domain.Isolation, error) {
		c.isolation.State = domain.IsolationKilling
		c.isolation.KillTargets = targets
		return c.isolation, nil
	}
	e.isolations.Impl.MarkKilledIfAllStopped = func(ctx context.Context, id string) (domain.Isolation, bool, error) {
		if c.isolation.State != domain.IsolationKilling {
			return c.isolation, false, nil
		}
		for _, t := range c.isolation.KillTargets {
			if p := c.instances[t].Container.Phase; p != domain.PhaseStopped {
				return c.isolation, false, nil
			}
		}
		c.isolation.State = domain.IsolationKilled
		return c.isolation, true, nil
	}
	e.isolations.Impl.SetRedeployed = func(ctx context.Context, id string) (domain.Isolation, error) {
		c.isolation.State = domain.IsolationNone
		return c.isolation, nil
	}
}

func TestKillIsolation_RedeploysAllWhenKilled(t *testing.T) {
	running := func(id string, isolated string) domain.Instance {
		return domain.Instance{
			InstanceId: id,
			Isolated:   isolated,
			Container: domain.Container{
				ContainerRef: domain.ContainerRef{DockerHost: "tcp://10.0.0.2:4242", DockerContainer: "container-" + id},
				Phase:        domain.PhaseRunning,
			},
		}
	}
	c := &cluster{
		instances: map[string]domain.Instance{
			"a": running("a", "iso-1"),
			"b": running("b", ""),
		},
		isolation: domain.Isolation{IsolationId: "iso-1", MasterInstanceId: "a", State: domain.IsolationNone, RedeployOnKilled: true},
	}
	e := newEnv()
	c.install(e)
	e.resolver.Impl.FetchDependentInstances = func(ctx context.Context, master domain.Instance) ([]domain.Instance, error) {
		return []domain.Instance{c.instances["b"]}, nil
	}
	testee := e.testee()
	ctx := context.Background()

	if err := testee.KillIsolation(ctx, jobs.IsolationKill{IsolationId: "iso-1"}); err != nil {
		t.Fatal(err)
	}
	if c.isolation.State != domain.IsolationKilling || !slices.Equal(c.isolation.KillTargets, []string{"a", "b"}) {
		t.Fatalf("isolation: %+v", c.isolation)
	}
	kills := jobsmock.OfKind[jobs.InstanceKill](e.publisher)
	if len(kills) != 2 {
		t.Fatalf("kills: %+v", kills)
	}

	if err := testee.Kill(ctx, kills[0]); err != nil {
		t.Fatal(err)
	}
	if n := len(jobsmock.OfKind[jobs.IsolationRedeploy](e.publisher)); n != 0 {
		t.Fatalf("redeployed before all are stopped")
	}
	if err := testee.Kill(ctx, kills[1]); err != nil {
		t.Fatal(err)
	}
	if c.isolation.State != domain.IsolationKilled {
		t.Fatalf("isolation: %+v", c.isolation)
	}
	redeploys := jobsmock.OfKind[jobs.IsolationRedeploy](e.publisher)
	if !slices.Equal(redeploys, []jobs.IsolationRedeploy{{IsolationId: "iso-1"}}) {
		t.Fatalf("isolation redeploys: %+v", redeploys)
	}

	if err := testee.RedeployIsolation(ctx, redeploys[0]); err != nil {
		t.Fatal(err)
	}
	redeployed := []string{}
	for _, r := range jobsmock.OfKind[jobs.InstanceRedeploy](e.publisher) {
		redeployed = append(redeployed, r.InstanceId)
	}
	if !slices.Equal(redeployed, []string{"a", "b"}) {
		t.Errorf("redeployed: %v", redeployed)
	}
	if c.isolation.State != domain.IsolationNone {
		t.Errorf("isolation: %+v", c.isolation)
	}
	if n := e.notifier.Called.EmitInstanceUpdate; len(n) != 2 || n[0].Action != instances.ActionStop {
		t.Errorf("notified: %+v", n)
	}
}

func TestKill(t *testing.T) {
	t.Run("a container gone already counts as stopped", func(t *testing.T) {
		c := &cluster{instances: map[string]domain.Instance{
			"a": {InstanceId: "a", Container: domain.Container{
				ContainerRef: domain.ContainerRef{DockerHost: "h", DockerContainer: "container-a"},
				Phase:        domain.PhaseStopping,
			}},
		}}
		e := newEnv()
		c.install(e)
		e.runtime.Impl.StopContainer = func(ctx context.Context, host, id string) error {
			return runtimeerrors.NewMissing("no such container")
		}

		if err := e.testee().Kill(context.Background(), jobs.InstanceKill{InstanceId: "a", DockerContainer: "container-a"}); err != nil {
			t.Fatal(err)
		}
		if c.instances["a"].Container.Phase != domain.PhaseStopped {
			t.Errorf("instance: %+v", c.instances["a"])
		}
	})

	t.Run("a job for another container is dropped", func(t *testing.T) {
		c := &cluster{instances: map[string]domain.Instance{
			"a": {InstanceId: "a", Container: domain.Container{
				ContainerRef: domain.ContainerRef{DockerHost: "h", DockerContainer: "container-b"},
				Phase:        domain.PhaseRunning,
			}},
		}}
		e := newEnv()
		c.install(e)

		err := e.testee().Kill(context.Background(), jobs.InstanceKill{InstanceId: "a", DockerContainer: "container-a"})
		if !errors.Is(err, domerr.ErrStale) {
			t.Errorf("unexpected error: %v", err)
		}
		if n := len(e.runtime.Called.StopContainer); n != 0 {
			t.Errorf("stopped %d times", n)
		}
	})
}

func TestDeleteContainer(t *testing.T) {
	for name, removeErr := range map[string]error{
		"removed":         nil,
		"already removed": runtimeerrors.NewMissing("no such container"),
	} {
		t.Run(name, func(t *testing.T) {
			e := newEnv()
			e.runtime.Impl.RemoveContainer = func(ctx context.Context, host, id string) error { return removeErr }
			if err := e.testee().DeleteContainer(context.Background(), jobs.ContainerDelete{DockerHost: "h", DockerContainer: "c"}); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	e := newEnv()
	e.autoIsolations.Impl.RemoveInstance = func(ctx context.Context, instanceId string) error { return nil }
	e.instances.Impl.Delete = func(ctx context.Context, instanceId string) (domain.Instance, error) {
		return domain.Instance{
			InstanceId: instanceId,
			Container: domain.Container{
				ContainerRef: domain.ContainerRef{DockerHost: "h", DockerContainer: "c"},
				Phase:        domain.PhaseRunning,
			},
		}, nil
	}

	deleted, err := e.testee().Delete(context.Background(), jobs.InstanceDelete{InstanceId: "inst-1"})
	if err != nil {
		t.Fatal(err)
	}
	if deleted.InstanceId != "inst-1" {
		t.Errorf("deleted: %+v", deleted)
	}
	if got := e.autoIsolations.Calls.RemoveInstance.Last(); got != "inst-1" {
		t.Errorf("RemoveInstance: %s", got)
	}
	if got := jobsmock.OfKind[jobs.ContainerDelete](e.publisher); !slices.Equal(got, []jobs.ContainerDelete{{DockerHost: "h", DockerContainer: "c"}}) {
		t.Errorf("container delete: %+v", got)
	}
	if n := len(e.notifier.Called.EmitInstanceDelete); n != 1 {
		t.Errorf("notified %d times", n)
	}
}

// locked serializes collaborators called from parallel passes.
type locked struct {
	mu sync.Mutex
	instdb.Interface
	billing   billing.Billing
	publisher jobs.Publisher
}

func (l *locked) Find(ctx context.Context, q instdb.InstanceQuery) ([]domain.Instance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Interface.Find(ctx, q)
}

func (l *locked) ClearContainer(ctx context.Context, instanceId string) (domain.ContainerRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Interface.ClearContainer(ctx, instanceId)
}

func (l *locked) ReleaseDock(ctx context.Context, instanceId string, dockerHost string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Interface.ReleaseDock(ctx, instanceId, dockerHost)
}

func (l *locked) IsPermitted(ctx context.Context, org string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.billing.IsPermitted(ctx, org)
}

func (l *locked) Publish(ctx context.Context, p jobs.Payload, options ...jobs.PublishOption) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.publisher.Publish(ctx, p, options...)
}

func TestOnDockRemoved(t *testing.T) {
	const host = "tcp://10.0.0.2:4242"
	on := func(id, owner, h string, phase domain.ContainerPhase, cvId string) domain.Instance {
		return domain.Instance{
			InstanceId: id, Owner: owner, ContextVersionId: cvId,
			Container: domain.Container{
				ContainerRef: domain.ContainerRef{DockerHost: h, DockerContainer: "container-" + id},
				Phase:        phase,
			},
		}
	}
	all := []domain.Instance{
		on("running", "org-1", host, domain.PhaseRunning, "cv-done"),
		on("starting", "org-1", host, domain.PhaseStarting, "cv-done"),
		on("unpaid", "org-2", host, domain.PhaseRunning, "cv-done"),
		on("elsewhere", "org-1", "tcp://10.0.0.3:4242", domain.PhaseRunning, "cv-other"),
		on("building", "org-1", "", domain.PhaseNone, "cv-building"),
		on("building-unpaid", "org-2", "", domain.PhaseNone, "cv-building"),
	}

	type When struct {
		billingErr error
	}
	type Then struct {
		err bool
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			e := newEnv()
			e.cvs.Impl.MarkDockRemoved = func(ctx context.Context, h string) ([]domain.ContextVersion, error) {
				return []domain.ContextVersion{
					{ContextVersionId: "cv-done", State: domain.BuildCompleted},
					{ContextVersionId: "cv-building", State: domain.BuildStarted},
				}, nil
			}
			e.instances.Impl.Find = func(ctx context.Context, q instdb.InstanceQuery) ([]domain.Instance, error) {
				ret := []domain.Instance{}
				for _, i := range all {
					if q.DockerHost != "" && (i.Container.DockerHost != q.DockerHost || !slices.Contains(q.Phases, i.Container.Phase)) {
						continue
					}
					if len(q.ContextVersionIds) != 0 && !slices.Contains(q.ContextVersionIds, i.ContextVersionId) {
						continue
					}
					ret = append(ret, i)
				}
				return ret, nil
			}
			e.instances.Impl.ClearContainer = func(ctx context.Context, instanceId string) (domain.ContainerRef, error) {
				return domain.ContainerRef{}, nil
			}
			e.instances.Impl.ReleaseDock = func(ctx context.Context, instanceId string, h string) error {
				return nil
			}
			e.billing.Impl.IsPermitted = func(ctx context.Context, org string) (bool, error) {
				if when.billingErr != nil && org == "org-2" {
					return false, when.billingErr
				}
				return org == "org-1", nil
			}

			l := &locked{Interface: e.instances, billing: e.billing, publisher: e.publisher}
			deps := e.deps()
			deps.Instances = l
			deps.Billing = l
			deps.Publisher = l
			testee := instances.New(config, deps, log.New(io.Discard, "", 0))

			err := testee.OnDockRemoved(context.Background(), jobs.DockRemoved{Host: host})
			if (err != nil) != then.err {
				t.Errorf("unexpected error: %v", err)
			}

			redeployed := []string{}
			uuids := map[string]struct{}{}
			for _, r := range jobsmock.OfKind[jobs.InstanceRedeploy](e.publisher) {
				redeployed = append(redeployed, r.InstanceId)
				uuids[r.DeploymentUuid] = struct{}{}
			}
			slices.Sort(redeployed)
			if !slices.Equal(redeployed, []string{"running", "starting"}) {
				t.Errorf("redeployed: %v", redeployed)
			}

			rebuilt := []string{}
			for _, r := range jobsmock.OfKind[jobs.InstanceRebuild](e.publisher) {
				rebuilt = append(rebuilt, r.InstanceId)
				uuids[r.DeploymentUuid] = struct{}{}
			}
			if !slices.Equal(rebuilt, []string{"building"}) {
				t.Errorf("rebuilt: %v", rebuilt)
			}

			purged := jobsmock.OfKind[jobs.DockPurged](e.publisher)
			if len(purged) != 1 || purged[0].Host != host {
				t.Fatalf("purged: %+v", purged)
			}
			uuids[purged[0].DeploymentUuid] = struct{}{}
			if len(uuids) != 1 {
				t.Errorf("deployment uuids are not shared: %v", uuids)
			}

			released := []string{}
			for _, r := range e.instances.Calls.ReleaseDock {
				if r.DockerHost != host {
					t.Errorf("released from another dock: %+v", r)
				}
				released = append(released, r.InstanceId)
			}
			if !slices.Contains(released, "running") || !slices.Contains(released, "starting") {
				t.Errorf("released: %v", released)
			}
			if slices.Contains(released, "elsewhere") {
				t.Errorf("an instance on another dock is released")
			}
		}
	}

	t.Run("it redeploys instances running on the dock, and rebuilds instances building on it", theory(
		When{}, Then{},
	))

	t.Run("it publishes dock.purged even if a pass fails", theory(
		When{billingErr: errors.New("billing is down")}, Then{err: true},
	))
}

func TestOnDockRemoved_Retry(t *testing.T) {
	const host = "tcp://10.0.0.2:4242"
	on := func(id string) domain.Instance {
		return domain.Instance{
			InstanceId: id, Owner: "org-1", ContextVersionId: "cv-done",
			Container: domain.Container{
				ContainerRef: domain.ContainerRef{DockerHost: host, DockerContainer: "container-" + id},
				Phase:        domain.PhaseRunning,
			},
		}
	}

	e := newEnv()
	e.cvs.Impl.MarkDockRemoved = func(ctx context.Context, h string) ([]domain.ContextVersion, error) {
		return []domain.ContextVersion{{ContextVersionId: "cv-done", State: domain.BuildCompleted}}, nil
	}
	onDock := map[string]domain.Instance{"deleted": on("deleted"), "flaky": on("flaky"), "healthy": on("healthy")}
	e.instances.Impl.Find = func(ctx context.Context, q instdb.InstanceQuery) ([]domain.Instance, error) {
		ret := []domain.Instance{}
		for _, id := range []string{"deleted", "flaky", "healthy"} {
			if i, ok := onDock[id]; ok {
				ret = append(ret, i)
			}
		}
		return ret, nil
	}
	e.instances.Impl.ReleaseDock = func(ctx context.Context, instanceId string, h string) error {
		if instanceId == "deleted" {
			return dberrors.Missing{Table: "instance", Identity: instanceId}
		}
		delete(onDock, instanceId)
		return nil
	}
	e.billing.Impl.IsPermitted = func(ctx context.Context, org string) (bool, error) { return true, nil }

	queueDown := true
	e.publisher.Impl.Publish = func(ctx context.Context, p jobs.Payload, _ domain.PublishOptions) (bool, error) {
		if r, ok := p.(jobs.InstanceRedeploy); ok && r.InstanceId == "flaky" && queueDown {
			return false, errors.New("queue: connection reset")
		}
		return true, nil
	}

	l := &locked{Interface: e.instances, billing: e.billing, publisher: e.publisher}
	deps := e.deps()
	deps.Instances = l
	deps.Billing = l
	deps.Publisher = l
	testee := instances.New(config, deps, log.New(io.Discard, "", 0))

	err := testee.OnDockRemoved(context.Background(), jobs.DockRemoved{Host: host})
	if got := jobs.Classify(err).Status(); got != domain.JobQueued {
		t.Fatalf("a failed publish should be retried: %s (%v)", got, err)
	}
	if _, ok := onDock["flaky"]; !ok {
		t.Fatal("an instance not redeployed yet is released from the dock")
	}

	queueDown = false
	e.publisher.Published = nil
	if err := testee.OnDockRemoved(context.Background(), jobs.DockRemoved{Host: host}); err != nil {
		t.Fatal(err)
	}
	redeployed := []string{}
	for _, r := range jobsmock.OfKind[jobs.InstanceRedeploy](e.publisher) {
		redeployed = append(redeployed, r.InstanceId)
	}
	if !slices.Contains(redeployed, "flaky") {
		t.Errorf("redeployed on retry: %v", redeployed)
	}
}
