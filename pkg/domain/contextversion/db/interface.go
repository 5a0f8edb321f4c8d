package db

import (
	"context"

	"github.com/opst/drydock/pkg/domain"
)

// NewContextVersion is a request to create a ContextVersion.
type NewContextVersion struct {
	ContextId string
	Owner     string
	CreatedBy string

	Fingerprint string
	Inputs      domain.BuildInputs
}

// Interface is a repository of ContextVersions.
//
// State changing methods are conditional updates: they change rows only when
// preconditions hold, and return ErrInvalidStateChanging (errors.Is) otherwise.
// Callers should treat it as "someone else has already handled it".
type Interface interface {
	// create a new ContextVersion in `created` state.
	//
	// # Returns
	//
	// - ContextVersion: created one.
	//
	// - error: ErrConflict when another in-progress ContextVersion has the same fingerprint.
	New(ctx context.Context, cv NewContextVersion) (domain.ContextVersion, error)

	// get ContextVersions by ids.
	//
	// # Returns
	//
	// - map[string]ContextVersion: ContextVersion id -> ContextVersion. Missing ids are not included.
	//
	// - error
	Get(ctx context.Context, contextVersionIds []string) (map[string]domain.ContextVersion, error)

	// find ContextVersions which can be reused for the fingerprint.
	//
	// Reusable ContextVersions are not errored, and not in-progress on a removed dock.
	//
	// # Returns
	//
	// - []ContextVersion: reusable ones, the most recently created first.
	//
	// - error
	FindReusable(ctx context.Context, fingerprint string) ([]domain.ContextVersion, error)

	// find ContextVersions sharing the build record.
	FindByBuild(ctx context.Context, buildId string) ([]domain.ContextVersion, error)

	// record that build is requested.
	//
	// When the build of the ContextVersion is not started yet, set build.started with a new build id.
	//
	// # Returns
	//
	// - ContextVersion: updated (or, as it is) ContextVersion.
	//
	// - bool: true if this call starts the build.
	//
	// - error: ErrMissing when the ContextVersion is not found.
	MarkRequested(ctx context.Context, contextVersionId string, triggeredAction string, triggeredBy string) (domain.ContextVersion, bool, error)

	// transit ContextVersions sharing the build record into `buildStarting`.
	//
	// Only ContextVersions whose build is started but not completed, and not `buildStarted` are changed.
	//
	// # Returns
	//
	// - []string: ids of changed ContextVersions.
	//
	// - error: ErrInvalidStateChanging when no ContextVersions are changed.
	MarkBuildStarting(ctx context.Context, buildId string, container domain.BuildContainer) ([]string, error)

	// transit ContextVersions sharing the build record and the container from `buildStarting` into `buildStarted`.
	//
	// # Returns
	//
	// - []string: ids of changed ContextVersions.
	//
	// - error: ErrInvalidStateChanging when no ContextVersions are changed.
	MarkBuildStarted(ctx context.Context, buildId string, dockerContainer string) ([]string, error)

	// finish the build. ContextVersions sharing the build record and the container get terminal state.
	//
	// This succeeds at most once for a build record.
	//
	// # Returns
	//
	// - []string: ids of changed ContextVersions.
	//
	// - error: ErrInvalidStateChanging when no ContextVersions are changed.
	Finish(ctx context.Context, buildId string, dockerContainer string, outcome domain.BuildOutcome) ([]string, error)

	// mark the build of the ContextVersion errored, if it is not terminal yet.
	//
	// # Returns
	//
	// - error: ErrInvalidStateChanging when the ContextVersion is already terminal.
	// ErrMissing when it is not found.
	ErrorBuild(ctx context.Context, contextVersionId string, message string) error

	// set dockRemoved of all ContextVersions built on the dock.
	//
	// # Returns
	//
	// - []ContextVersion: ContextVersions built on the dock.
	//
	// - error
	MarkDockRemoved(ctx context.Context, dockerHost string) ([]domain.ContextVersion, error)

	// recover the ContextVersion after a stale event: dockRemoved is cleared, and recovered is set.
	//
	// # Returns
	//
	// - error: ErrMissing when it is not found.
	Recover(ctx context.Context, contextVersionId string) error

	// delete the ContextVersion.
	//
	// # Returns
	//
	// - error: ErrInUse when it is referenced by Instances or Builds. ErrMissing when it is not found.
	Delete(ctx context.Context, contextVersionId string) error
}
