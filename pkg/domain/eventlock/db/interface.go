package db

import (
	"context"
	"time"
)

// Interface is a short-lived mutual exclusion keyed by event id.
//
// Acquire never blocks. A lock expires after its ttl even if not released,
// so a crashed holder does not hold the key forever.
type Interface interface {
	// try to take the key.
	//
	// # Returns
	//
	// - bool: true when the key is taken by this call. false when someone else holds it.
	//
	// - error
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// release the key.
	Release(ctx context.Context, key string) error

	// remove expired locks.
	Sweep(ctx context.Context) (int64, error)
}
