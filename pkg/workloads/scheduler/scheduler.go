// Package scheduler asks the host scheduler which dock a container should go.
package scheduler

import (
	"context"
	"errors"

	"github.com/opst/drydock/pkg/domain"
	"github.com/opst/drydock/pkg/workloads/webapi"
)

// the scheduler answered without a dock.
var ErrNoDock = errors.New("no dock is available")

type Scheduler interface {
	// FindDockForBuild selects a dock to run the image-builder for the ContextVersion.
	FindDockForBuild(ctx context.Context, cv domain.ContextVersion) (string, error)

	// FindDockForContainer selects a dock to run an instance container built from the ContextVersion.
	FindDockForContainer(ctx context.Context, cv domain.ContextVersion) (string, error)
}

const (
	typeBuild     = "container_build"
	typeContainer = "container_run"
)

type dockRequest struct {
	Type     string `json:"type"`
	Tags     string `json:"tags"`
	PrevDock string `json:"prevDock,omitempty"`
}

type dockResponse struct {
	DockHost string `json:"dockHost"`
}

type mavis struct {
	client *webapi.Client
}

func New(client *webapi.Client) Scheduler {
	return &mavis{client: client}
}

func (m *mavis) find(ctx context.Context, typ string, cv domain.ContextVersion) (string, error) {
	req := dockRequest{Type: typ, Tags: cv.Owner, PrevDock: cv.Build.DockerHost}
	var resp dockResponse
	if err := m.client.Post(ctx, req, &resp, "dock"); err != nil {
		return "", err
	}
	if resp.DockHost == "" {
		return "", ErrNoDock
	}
	return resp.DockHost, nil
}

func (m *mavis) FindDockForBuild(ctx context.Context, cv domain.ContextVersion) (string, error) {
	return m.find(ctx, typeBuild, cv)
}

func (m *mavis) FindDockForContainer(ctx context.Context, cv domain.ContextVersion) (string, error) {
	return m.find(ctx, typeContainer, cv)
}
