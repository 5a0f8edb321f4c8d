package db

import (
	"context"

	"github.com/opst/drydock/pkg/domain"
)

type NewAutoIsolationConfig struct {
	// master instance. Can be empty, and set later.
	InstanceId string

	RequestedDependencies []domain.Dependency

	CreatedByUser    string
	OwnedByOrg       string
	RedeployOnKilled bool
}

type Interface interface {
	// create a new AutoIsolationConfig.
	//
	// # Returns
	//
	// - error: ErrDuplicateDependency when two dependencies resolve to the same one.
	// ErrInvalidDependency when a dependency is malformed.
	New(ctx context.Context, config NewAutoIsolationConfig) (domain.AutoIsolationConfig, error)

	// get an active AutoIsolationConfig.
	//
	// # Returns
	//
	// - error: ErrMissing when not found (or, deleted).
	Get(ctx context.Context, autoIsolationConfigId string) (domain.AutoIsolationConfig, error)

	// find the active AutoIsolationConfig of the master instance.
	//
	// # Returns
	//
	// - error: ErrMissing when not found.
	FindByInstance(ctx context.Context, instanceId string) (domain.AutoIsolationConfig, error)

	// set the master instance.
	SetInstance(ctx context.Context, autoIsolationConfigId string, instanceId string) error

	// append a dependency.
	//
	// # Returns
	//
	// - error: ErrDuplicateDependency when the config has an equivalent dependency already.
	PushDependency(ctx context.Context, autoIsolationConfigId string, dependency domain.Dependency) error

	// forget the instance: dependencies referring it are removed,
	// and configs whose master is it are deleted.
	RemoveInstance(ctx context.Context, instanceId string) error

	// delete the AutoIsolationConfig (softly).
	Delete(ctx context.Context, autoIsolationConfigId string) error
}
