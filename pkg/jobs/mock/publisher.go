package mock

import (
	"context"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/jobs"
)

type Published struct {
	Payload jobs.Payload
	Options domain.PublishOptions
}

// Publisher records published jobs.
//
// Payloads are validated as the real publisher does.
type Publisher struct {
	Impl struct {
		Publish func(ctx context.Context, payload jobs.Payload, options domain.PublishOptions) (bool, error)
	}
	Published []Published
}

var _ jobs.Publisher = &Publisher{}

func (m *Publisher) Publish(ctx context.Context, payload jobs.Payload, options ...jobs.PublishOption) (bool, error) {
	if err := jobs.Validate(payload); err != nil {
		return false, err
	}
	opts := domain.PublishOptions{}
	for _, o := range options {
		o(&opts)
	}
	m.Published = append(m.Published, Published{Payload: payload, Options: opts})
	if m.Impl.Publish == nil {
		return true, nil
	}
	return m.Impl.Publish(ctx, payload, opts)
}

// OfKind returns payloads published with the kind.
func OfKind[P jobs.Payload](m *Publisher) []P {
	ret := []P{}
	for _, p := range m.Published {
		if v, ok := p.Payload.(P); ok {
			ret = append(ret, v)
		}
	}
	return ret
}
