// Package dedupe decides whether a build configuration needs a new build,
// or can reuse an existing one.
//
// Similar configurations are looked up first, and only when none is found,
// a new one is created. The store rejects a second in-progress record for
// the same configuration, and the loser of such race looks up again.
package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/opst/drydock/pkg/domain"
	cvdb "github.com/opst/drydock/pkg/domain/contextversion/db"
	domerr "github.com/opst/drydock/pkg/domain/errors"
	iccdb "github.com/opst/drydock/pkg/domain/inputcluster/db"
	"github.com/opst/drydock/pkg/workloads/git"
)

// the lookup-or-create loop did not settle.
var ErrContention = errors.New("dedupe: too much contention")

type ClusterSpec struct {
	AutoIsolationConfigId      string
	Similarity                 domain.ClusterSimilarity
	ParentInputClusterConfigId string
	CreatedByUser              string
	OwnedByOrg                 string
}

type Resolver interface {
	// ResolveOrCreate returns a ContextVersion to be used for the spec.
	//
	// When the spec has no commit, the head of its branch is used.
	//
	// # Returns
	//
	// - ContextVersion: reused or created one.
	//
	// - bool: true if it is reused.
	//
	// - error: ErrContention when it cannot settle.
	ResolveOrCreate(ctx context.Context, owner string, createdBy string, spec domain.BuildSpec) (domain.ContextVersion, bool, error)

	// FindCluster returns an active InputClusterConfig similar to the similarity, if any.
	FindCluster(ctx context.Context, similarity domain.ClusterSimilarity) (domain.InputClusterConfig, bool, error)

	// ResolveOrCreateCluster returns an InputClusterConfig to be used for the spec.
	//
	// # Returns
	//
	// - InputClusterConfig: reused or created one.
	//
	// - bool: true if it is reused.
	//
	// - error: ErrContention when it cannot settle.
	ResolveOrCreateCluster(ctx context.Context, spec ClusterSpec) (domain.InputClusterConfig, bool, error)
}

type resolver struct {
	cvs         cvdb.Interface
	clusters    iccdb.Interface
	commits     git.CommitResolver
	maxAttempts int
}

func New(cvs cvdb.Interface, clusters iccdb.Interface, commits git.CommitResolver, maxAttempts int) Resolver {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &resolver{cvs: cvs, clusters: clusters, commits: commits, maxAttempts: maxAttempts}
}

func (r *resolver) ResolveOrCreate(ctx context.Context, owner string, createdBy string, spec domain.BuildSpec) (domain.ContextVersion, bool, error) {
	acv := spec.AppCodeVersion
	if acv.Commit == "" && acv.Repo != "" {
		commit, err := r.commits.HeadCommit(ctx, acv.Repo, acv.Branch)
		if err != nil {
			return domain.ContextVersion{}, false, err
		}
		spec.AppCodeVersion.Commit = commit
	}

	inputs := spec.Inputs().Normalized()
	fingerprint := domain.Fingerprint(inputs)

	for range r.maxAttempts {
		found, err := r.cvs.FindReusable(ctx, fingerprint)
		if err != nil {
			return domain.ContextVersion{}, false, err
		}
		if len(found) != 0 {
			return found[0], true, nil
		}

		cv, err := r.cvs.New(ctx, cvdb.NewContextVersion{
			ContextId:   spec.ContextId,
			Owner:       owner,
			CreatedBy:   createdBy,
			Fingerprint: fingerprint,
			Inputs:      inputs,
		})
		if errors.Is(err, domerr.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.ContextVersion{}, false, err
		}
		return cv, false, nil
	}
	return domain.ContextVersion{}, false, fmt.Errorf("%w: fingerprint %s", ErrContention, fingerprint)
}

func (r *resolver) FindCluster(ctx context.Context, similarity domain.ClusterSimilarity) (domain.InputClusterConfig, bool, error) {
	found, err := r.clusters.FindSimilar(ctx, similarity)
	if err != nil {
		return domain.InputClusterConfig{}, false, err
	}
	if len(found) == 0 {
		return domain.InputClusterConfig{}, false, nil
	}
	return found[0], true, nil
}

func (r *resolver) ResolveOrCreateCluster(ctx context.Context, spec ClusterSpec) (domain.InputClusterConfig, bool, error) {
	sim := domain.NewClusterSimilarity(
		spec.Similarity.Repo, spec.Similarity.Branch, spec.Similarity.IsTesting, spec.Similarity.Files,
	)

	for range r.maxAttempts {
		found, ok, err := r.FindCluster(ctx, sim)
		if err != nil {
			return domain.InputClusterConfig{}, false, err
		}
		if ok {
			return found, true, nil
		}

		icc, err := r.clusters.New(ctx, iccdb.NewInputClusterConfig{
			AutoIsolationConfigId:      spec.AutoIsolationConfigId,
			Similarity:                 sim,
			ParentInputClusterConfigId: spec.ParentInputClusterConfigId,
			CreatedByUser:              spec.CreatedByUser,
			OwnedByOrg:                 spec.OwnedByOrg,
		})
		if errors.Is(err, domerr.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.InputClusterConfig{}, false, err
		}
		return icc, false, nil
	}
	return domain.InputClusterConfig{}, false, fmt.Errorf("%w: cluster %s@%s", ErrContention, sim.Repo, sim.Branch)
}
