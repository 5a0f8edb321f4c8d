package db

import (
	"context"

	"github.com/opst/drydock/pkg/domain"
)

type NewInputClusterConfig struct {
	AutoIsolationConfigId string

	Similarity domain.ClusterSimilarity

	// empty when the config has no parent.
	ParentInputClusterConfigId string

	CreatedByUser string
	OwnedByOrg    string
}

type Interface interface {
	// find active InputClusterConfigs similar to the key, the most recently created first.
	FindSimilar(ctx context.Context, similarity domain.ClusterSimilarity) ([]domain.InputClusterConfig, error)

	// create a new InputClusterConfig.
	//
	// # Returns
	//
	// - error: ErrConflict when an active similar one exists.
	New(ctx context.Context, config NewInputClusterConfig) (domain.InputClusterConfig, error)

	// get an active InputClusterConfig.
	//
	// # Returns
	//
	// - error: ErrMissing when not found.
	Get(ctx context.Context, inputClusterConfigId string) (domain.InputClusterConfig, error)

	// delete the InputClusterConfig (softly).
	Delete(ctx context.Context, inputClusterConfigId string) error
}
