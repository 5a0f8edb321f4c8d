// Package billing consults the identity/billing service about organizations.
package billing

import (
	"context"
	"net/http"

	"github.com/opst/drydock/pkg/workloads/webapi"
)

type Billing interface {
	// IsPermitted tells the organization may use the platform.
	//
	// Unknown organizations are not permitted.
	IsPermitted(ctx context.Context, org string) (bool, error)
}

type permission struct {
	Permitted bool `json:"permitted"`
}

type service struct {
	client *webapi.Client
}

func New(client *webapi.Client) Billing {
	return &service{client: client}
}

func (s *service) IsPermitted(ctx context.Context, org string) (bool, error) {
	var p permission
	if err := s.client.Get(ctx, &p, "orgs", org, "permission"); err != nil {
		if webapi.StatusOf(err) == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return p.Permitted, nil
}

type allowAll struct{}

// AllowAll permits every organization. It is used when no billing service is configured.
func AllowAll() Billing {
	return allowAll{}
}

func (allowAll) IsPermitted(context.Context, string) (bool, error) {
	return true, nil
}
