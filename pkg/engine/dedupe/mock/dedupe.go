package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/engine/dedupe"
)

type Resolver struct {
	Impl struct {
		ResolveOrCreate        func(ctx context.Context, owner string, createdBy string, spec domain.BuildSpec) (domain.ContextVersion, bool, error)
		FindCluster            func(ctx context.Context, similarity domain.ClusterSimilarity) (domain.InputClusterConfig, bool, error)
		ResolveOrCreateCluster func(ctx context.Context, spec dedupe.ClusterSpec) (domain.InputClusterConfig, bool, error)
	}
	Called struct {
		ResolveOrCreate        []domain.BuildSpec
		FindCluster            []domain.ClusterSimilarity
		ResolveOrCreateCluster []dedupe.ClusterSpec
	}
}

var _ dedupe.Resolver = &Resolver{}

func (m *Resolver) ResolveOrCreate(ctx context.Context, owner string, createdBy string, spec domain.BuildSpec) (domain.ContextVersion, bool, error) {
	m.Called.ResolveOrCreate = append(m.Called.ResolveOrCreate, spec)
	if m.Impl.ResolveOrCreate == nil {
		return domain.ContextVersion{}, false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.ResolveOrCreate(ctx, owner, createdBy, spec)
}

func (m *Resolver) FindCluster(ctx context.Context, similarity domain.ClusterSimilarity) (domain.InputClusterConfig, bool, error) {
	m.Called.FindCluster = append(m.Called.FindCluster, similarity)
	if m.Impl.FindCluster == nil {
		return domain.InputClusterConfig{}, false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindCluster(ctx, similarity)
}

func (m *Resolver) ResolveOrCreateCluster(ctx context.Context, spec dedupe.ClusterSpec) (domain.InputClusterConfig, bool, error) {
	m.Called.ResolveOrCreateCluster = append(m.Called.ResolveOrCreateCluster, spec)
	if m.Impl.ResolveOrCreateCluster == nil {
		return domain.InputClusterConfig{}, false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.ResolveOrCreateCluster(ctx, spec)
}
