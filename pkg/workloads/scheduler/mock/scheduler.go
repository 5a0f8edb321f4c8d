package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/workloads/scheduler"
)

type Scheduler struct {
	Impl struct {
		FindDockForBuild     func(ctx context.Context, cv domain.ContextVersion) (string, error)
		FindDockForContainer func(ctx context.Context, cv domain.ContextVersion) (string, error)
	}
	Called struct {
		FindDockForBuild     []domain.ContextVersion
		FindDockForContainer []domain.ContextVersion
	}
}

var _ scheduler.Scheduler = &Scheduler{}

func (m *Scheduler) FindDockForBuild(ctx context.Context, cv domain.ContextVersion) (string, error) {
	m.Called.FindDockForBuild = append(m.Called.FindDockForBuild, cv)
	if m.Impl.FindDockForBuild == nil {
		return "", errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindDockForBuild(ctx, cv)
}

func (m *Scheduler) FindDockForContainer(ctx context.Context, cv domain.ContextVersion) (string, error) {
	m.Called.FindDockForContainer = append(m.Called.FindDockForContainer, cv)
	if m.Impl.FindDockForContainer == nil {
		return "", errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindDockForContainer(ctx, cv)
}
