package main

import (
	"context"

	drydock "github.com/opst/drydock/pkg"
	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/engine/builds"
	"github.com/opst/drydock/pkg/engine/instances"
	"github.com/opst/drydock/pkg/engine/isolation"
	"github.com/opst/drydock/pkg/jobs"
)

// Engines handle jobs.
type Engines struct {
	Orchestrator builds.Orchestrator
	Coordinator  instances.Coordinator
	Isolation    isolation.Service
}

func EnginesOf(d drydock.Drydock) Engines {
	return Engines{
		Orchestrator: d.Orchestrator(),
		Coordinator:  d.Coordinator(),
		Isolation:    d.Isolation(),
	}
}

// Routes tells which loop handles which job kind, and how.
//
// Each job kind is handled by exactly one loop type.
// HousekeepingLoop does not handle jobs.
func Routes(e Engines) map[domain.LoopType]jobs.Router {
	o, c, i := e.Orchestrator, e.Coordinator, e.Isolation
	return map[domain.LoopType]jobs.Router{
		domain.BuildLoop: {
			jobs.KindBuildContainerCreate:  jobs.Handle(o.CreateContainer),
			jobs.KindBuildContainerCreated: jobs.Handle(o.OnContainerCreated),
			jobs.KindBuildContainerDied:    jobs.Handle(o.OnContainerDied),
		},
		domain.InstanceLoop: {
			jobs.KindInstanceContainerCreate:  jobs.Handle(c.CreateContainer),
			jobs.KindInstanceContainerCreated: jobs.Handle(c.OnContainerCreated),
			jobs.KindInstanceStart:            jobs.Handle(c.StartContainer),
			jobs.KindInstanceRedeploy:         jobs.Handle(c.Redeploy),
			jobs.KindInstanceRebuild:          jobs.Handle(c.Rebuild),
			jobs.KindInstanceKill:             jobs.Handle(c.Kill),
			jobs.KindInstanceDelete: jobs.Handle(func(ctx context.Context, job jobs.InstanceDelete) error {
				_, err := c.Delete(ctx, job)
				return err
			}),
			jobs.KindContainerDelete: jobs.Handle(c.DeleteContainer),
		},
		domain.DockLoop: {
			jobs.KindDockRemoved: jobs.Handle(c.OnDockRemoved),
			jobs.KindDockPurged:  jobs.Ignore[jobs.DockPurged](),
		},
		domain.IsolationLoop: {
			jobs.KindIsolationKill:     jobs.Handle(c.KillIsolation),
			jobs.KindIsolationRedeploy: jobs.Handle(c.RedeployIsolation),
		},
		domain.ClusterLoop: {
			jobs.KindClusterInstanceCreate: jobs.Handle(func(ctx context.Context, job jobs.ClusterInstanceCreate) error {
				_, err := i.CreateClusterInstance(ctx, job)
				return err
			}),
			jobs.KindClusterInstanceCreated: jobs.Ignore[jobs.ClusterInstanceCreated](),
		},
	}
}
