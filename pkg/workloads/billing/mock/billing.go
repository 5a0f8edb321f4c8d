package mock

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/workloads/billing"
)

type Billing struct {
	Impl struct {
		IsPermitted func(ctx context.Context, org string) (bool, error)
	}
	Called struct {
		IsPermitted []string
	}
}

var _ billing.Billing = &Billing{}

func (m *Billing) IsPermitted(ctx context.Context, org string) (bool, error) {
	m.Called.IsPermitted = append(m.Called.IsPermitted, org)
	if m.Impl.IsPermitted == nil {
		return false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.IsPermitted(ctx, org)
}
