package db

import (
	"context"

	"github.com/opst/drydock/pkg/domain"
)

type NewIsolation struct {
	Owner            string
	CreatedBy        string
	MasterInstanceId string
	RedeployOnKilled bool
}

type Interface interface {
	// create a new Isolation in none state.
	New(ctx context.Context, isolation NewIsolation) (domain.Isolation, error)

	// get an Isolation.
	//
	// # Returns
	//
	// - error: ErrMissing when not found.
	Get(ctx context.Context, isolationId string) (domain.Isolation, error)

	// find killing Isolations which target the instance.
	FindKilling(ctx context.Context, instanceId string) ([]domain.Isolation, error)

	// start killing the Isolation: none or killed -> killing.
	//
	// # Args
	//
	// - targets: ids of instances to be killed together.
	//
	// # Returns
	//
	// - error: ErrInvalidStateChanging when the Isolation is already killing.
	SetKilling(ctx context.Context, isolationId string, targets []string) (domain.Isolation, error)

	// killing -> killed, when all kill targets are stopped (or, have no containers).
	//
	// # Returns
	//
	// - Isolation: the Isolation after the call.
	//
	// - bool: true when this call changes the Isolation into killed.
	//
	// - error: ErrMissing when not found.
	MarkKilledIfAllStopped(ctx context.Context, isolationId string) (domain.Isolation, bool, error)

	// killed -> none, after its members are redeployed.
	//
	// # Returns
	//
	// - error: ErrInvalidStateChanging when the Isolation is not killed.
	SetRedeployed(ctx context.Context, isolationId string) (domain.Isolation, error)

	// delete the Isolation.
	//
	// # Returns
	//
	// - Isolation: deleted one.
	//
	// - error: ErrMissing when not found.
	Delete(ctx context.Context, isolationId string) (domain.Isolation, error)
}
