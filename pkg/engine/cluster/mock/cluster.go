package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/engine/cluster"
)

type Provisioner struct {
	Impl struct {
		Provision func(ctx context.Context, spec cluster.ClusterSpec) (domain.InputClusterConfig, bool, error)
	}
	Called struct {
		Provision []cluster.ClusterSpec
	}
}

var _ cluster.Provisioner = &Provisioner{}

func (m *Provisioner) Provision(ctx context.Context, spec cluster.ClusterSpec) (domain.InputClusterConfig, bool, error) {
	m.Called.Provision = append(m.Called.Provision, spec)
	if m.Impl.Provision == nil {
		return domain.InputClusterConfig{}, false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Provision(ctx, spec)
}
