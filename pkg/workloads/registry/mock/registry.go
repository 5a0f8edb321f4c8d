package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/workloads/registry"
)

type Registry struct {
	Impl struct {
		Digest func(ctx context.Context, ref string) (string, error)
	}
	Called struct {
		Digest []string
	}
}

var _ registry.Registry = &Registry{}

func (m *Registry) Digest(ctx context.Context, ref string) (string, error) {
	m.Called.Digest = append(m.Called.Digest, ref)
	if m.Impl.Digest == nil {
		return "", errors.New("[MOCK] not implemented")
	}
	return m.Impl.Digest(ctx, ref)
}
