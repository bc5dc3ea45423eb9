package repository

import (
	"context"
	"time"
)

// IdempotencyRepository remembers the outcome of admin send requests keyed by
// a client supplied Idempotency-Key.
type IdempotencyRepository interface {
	// Reserve claims key for ttl. False means someone already holds it.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Complete stores the result for a reserved key.
	Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error
	// Get returns the stored result; found with a nil result means the
	// reservation exists but has not completed.
	Get(ctx context.Context, key string) (result []byte, found bool, err error)
	// Release drops a reservation whose request failed.
	Release(ctx context.Context, key string) error
}
