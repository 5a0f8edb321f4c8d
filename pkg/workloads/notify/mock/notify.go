package mock

import (
	"context"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/workloads/notify"
)

type InstanceUpdate struct {
	Instance domain.Instance
	Action   string
}

type ContextVersionUpdate struct {
	ContextVersion domain.ContextVersion
	Action         string
}

// Notifier records notifications.
type Notifier struct {
	Called struct {
		EmitInstanceUpdate       []InstanceUpdate
		EmitInstanceDelete       []domain.Instance
		EmitContextVersionUpdate []ContextVersionUpdate
	}
}

var _ notify.Notifier = &Notifier{}

func (m *Notifier) EmitInstanceUpdate(ctx context.Context, instance domain.Instance, action string) {
	m.Called.EmitInstanceUpdate = append(m.Called.EmitInstanceUpdate, InstanceUpdate{Instance: instance, Action: action})
}

func (m *Notifier) EmitInstanceDelete(ctx context.Context, instance domain.Instance) {
	m.Called.EmitInstanceDelete = append(m.Called.EmitInstanceDelete, instance)
}

func (m *Notifier) EmitContextVersionUpdate(ctx context.Context, cv domain.ContextVersion, action string) {
	m.Called.EmitContextVersionUpdate = append(m.Called.EmitContextVersionUpdate, ContextVersionUpdate{ContextVersion: cv, Action: action})
}
