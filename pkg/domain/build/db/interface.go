package db

import (
	"context"

	"github.com/opst/drydock/pkg/domain"
)

type NewBuild struct {
	Owner     string
	CreatedBy string

	// ContextVersions grouped by the Build. Ids should be distinct.
	ContextVersionIds []string
}

type Interface interface {
	// create a new Build grouping ContextVersions.
	//
	// # Returns
	//
	// - Build: created one. It is started, but not completed.
	//
	// - error: ErrMissing when some of ContextVersions are not found.
	New(ctx context.Context, build NewBuild) (domain.Build, error)

	// get Builds by ids.
	//
	// # Returns
	//
	// - map[string]Build: Build id -> Build. Missing ids are not included.
	//
	// - error
	Get(ctx context.Context, buildIds []string) (map[string]domain.Build, error)

	// complete Builds whose all ContextVersions are terminal.
	//
	// Only Builds containing any of given ContextVersions are examined.
	// A Build is failed if any of its ContextVersions are errored.
	//
	// Each Build is completed at most once.
	//
	// # Returns
	//
	// - []Build: Builds completed by this call.
	//
	// - error
	Resolve(ctx context.Context, contextVersionIds []string) ([]domain.Build, error)
}
