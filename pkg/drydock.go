package drydock

import (
	"fmt"
	"log"
	"net/http"

	bconf "github.com/opst/drydock/pkg/configs/backend"
	kpool "github.com/opst/drydock/pkg/conn/postgres/pool"
	aicdb "github.com/opst/drydock/pkg/domain/autoisolation/db"
	aicpg "github.com/opst/drydock/pkg/domain/autoisolation/db/postgres"
	builddb "github.com/opst/drydock/pkg/domain/build/db"
	buildpg "github.com/opst/drydock/pkg/domain/build/db/postgres"
	cvdb "github.com/opst/drydock/pkg/domain/contextversion/db"
	cvpg "github.com/opst/drydock/pkg/domain/contextversion/db/postgres"
	lockdb "github.com/opst/drydock/pkg/domain/eventlock/db"
	lockpg "github.com/opst/drydock/pkg/domain/eventlock/db/postgres"
	iccdb "github.com/opst/drydock/pkg/domain/inputcluster/db"
	iccpg "github.com/opst/drydock/pkg/domain/inputcluster/db/postgres"
	instdb "github.com/opst/drydock/pkg/domain/instance/db"
	instpg "github.com/opst/drydock/pkg/domain/instance/db/postgres"
	isodb "github.com/opst/drydock/pkg/domain/isolation/db"
	isopg "github.com/opst/drydock/pkg/domain/isolation/db/postgres"
	jobdb "github.com/opst/drydock/pkg/domain/job/db"
	jobpg "github.com/opst/drydock/pkg/domain/job/db/postgres"
	"github.com/opst/drydock/pkg/engine/builds"
	"github.com/opst/drydock/pkg/engine/cluster"
	"github.com/opst/drydock/pkg/engine/dedupe"
	"github.com/opst/drydock/pkg/engine/instances"
	"github.com/opst/drydock/pkg/engine/isolation"
	"github.com/opst/drydock/pkg/jobs"
	"github.com/opst/drydock/pkg/workloads/billing"
	"github.com/opst/drydock/pkg/workloads/docker"
	"github.com/opst/drydock/pkg/workloads/git"
	"github.com/opst/drydock/pkg/workloads/notify"
	"github.com/opst/drydock/pkg/workloads/registry"
	"github.com/opst/drydock/pkg/workloads/scheduler"
	"github.com/opst/drydock/pkg/workloads/webapi"
)

// times a lookup-or-create of deduplication is tried before giving up.
const dedupeAttempts = 5

// Repositories are stores of drydock.
type Repositories struct {
	ContextVersions      cvdb.Interface
	Builds               builddb.Interface
	Instances            instdb.Interface
	Isolations           isodb.Interface
	AutoIsolationConfigs aicdb.Interface
	InputClusters        iccdb.Interface
	EventLocks           lockdb.Interface
	Jobs                 jobdb.Interface
}

// Repositories on the PostgreSQL database.
func AttachRepositories(pool kpool.Pool, conf *bconf.JobsConfig) Repositories {
	return Repositories{
		ContextVersions:      cvpg.New(pool),
		Builds:               buildpg.New(pool),
		Instances:            instpg.New(pool),
		Isolations:           isopg.New(pool),
		AutoIsolationConfigs: aicpg.New(pool),
		InputClusters:        iccpg.New(pool),
		EventLocks:           lockpg.New(pool),
		Jobs: jobpg.New(pool, jobpg.Backoff{
			MaxAttempts: conf.MaxAttempts(),
			Base:        conf.Backoff(),
			Factor:      conf.BackoffFactor(),
		}),
	}
}

// Drydock is a set of engines sharing repositories and collaborators.
type Drydock interface {
	Config() *bconf.BackendConfig
	Repositories() Repositories
	Publisher() jobs.Publisher

	Orchestrator() builds.Orchestrator
	Coordinator() instances.Coordinator
	Isolation() isolation.Service
	Clusters() cluster.Provisioner
}

type drydock struct {
	config    *bconf.BackendConfig
	repos     Repositories
	publisher jobs.Publisher

	orchestrator builds.Orchestrator
	coordinator  instances.Coordinator
	isolation    isolation.Service
	clusters     cluster.Provisioner
}

var _ Drydock = &drydock{}

// Collaborators are services outside drydock.
type Collaborators struct {
	Runtime   docker.Runtime
	Registry  registry.Registry
	Commits   git.CommitResolver
	Scheduler scheduler.Scheduler
	Billing   billing.Billing
	Notifier  notify.Notifier
}

// Connect makes clients of collaborators from config.
func Connect(conf *bconf.BackendConfig, logger *log.Logger) (Collaborators, error) {
	httpclient := http.DefaultClient

	sched, err := webapi.New(conf.Scheduler().URL(), httpclient)
	if err != nil {
		return Collaborators{}, fmt.Errorf("scheduler: %w", err)
	}

	bill := billing.AllowAll()
	if b := conf.Billing(); b != nil {
		c, err := webapi.New(b.URL(), httpclient)
		if err != nil {
			return Collaborators{}, fmt.Errorf("billing: %w", err)
		}
		bill = billing.New(c)
	}

	endpoints := []*webapi.Client{}
	for _, u := range conf.Notify().URLs() {
		c, err := webapi.New(u, httpclient)
		if err != nil {
			return Collaborators{}, fmt.Errorf("notify: %w", err)
		}
		endpoints = append(endpoints, c)
	}

	d := conf.Docker()
	return Collaborators{
		Runtime:   docker.NewRuntime(docker.DialDocks(d.Port()), d.StopTimeout()),
		Registry:  registry.New(registry.Config{Insecure: d.InsecureRegistry()}),
		Commits:   git.New(conf.Git().BaseURL()),
		Scheduler: scheduler.New(sched),
		Billing:   bill,
		Notifier:  notify.Web{Endpoints: endpoints, Logger: logger},
	}, nil
}

// Attach wires engines up.
func Attach(conf *bconf.BackendConfig, repos Repositories, collab Collaborators, logger *log.Logger) Drydock {
	publisher := jobs.NewPublisher(repos.Jobs)
	resolver := dedupe.New(repos.ContextVersions, repos.InputClusters, collab.Commits, dedupeAttempts)

	orchestrator := builds.New(
		builds.Config{
			BuilderImage:           conf.Docker().BuilderImage(),
			Registry:               conf.Docker().Registry(),
			ContainerNotFoundGrace: conf.Thresholds().BuildContainerNotFoundGrace(),
			EventLockTTL:           conf.Thresholds().EventLockTTL(),
		},
		builds.Deps{
			ContextVersions: repos.ContextVersions,
			Builds:          repos.Builds,
			Instances:       repos.Instances,
			EventLocks:      repos.EventLocks,
			Dedupe:          resolver,
			Runtime:         collab.Runtime,
			Scheduler:       collab.Scheduler,
			Notifier:        collab.Notifier,
			Publisher:       publisher,
		},
		logger,
	)

	iso := isolation.New(
		isolation.Deps{
			Instances:            repos.Instances,
			Builds:               repos.Builds,
			Isolations:           repos.Isolations,
			AutoIsolationConfigs: repos.AutoIsolationConfigs,
			Orchestrator:         orchestrator,
			Publisher:            publisher,
		},
		logger,
	)

	coordinator := instances.New(
		instances.Config{ImagePushGrace: conf.Thresholds().ImagePushGrace()},
		instances.Deps{
			Instances:            repos.Instances,
			ContextVersions:      repos.ContextVersions,
			Builds:               repos.Builds,
			Isolations:           repos.Isolations,
			AutoIsolationConfigs: repos.AutoIsolationConfigs,
			Orchestrator:         orchestrator,
			Resolver:             iso,
			Runtime:              collab.Runtime,
			Registry:             collab.Registry,
			Scheduler:            collab.Scheduler,
			Billing:              collab.Billing,
			Notifier:             collab.Notifier,
			Publisher:            publisher,
		},
		logger,
	)

	return &drydock{
		config:       conf,
		repos:        repos,
		publisher:    publisher,
		orchestrator: orchestrator,
		coordinator:  coordinator,
		isolation:    iso,
		clusters:     cluster.New(repos.AutoIsolationConfigs, resolver, publisher, logger),
	}
}

func (d *drydock) Config() *bconf.BackendConfig {
	return d.config
}

func (d *drydock) Repositories() Repositories {
	return d.repos
}

func (d *drydock) Publisher() jobs.Publisher {
	return d.publisher
}

func (d *drydock) Orchestrator() builds.Orchestrator {
	return d.orchestrator
}

func (d *drydock) Coordinator() instances.Coordinator {
	return d.coordinator
}

func (d *drydock) Isolation() isolation.Service {
	return d.isolation
}

func (d *drydock) Clusters() cluster.Provisioner {
	return d.clusters
}
