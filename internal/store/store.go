// Package store provides attempt-counter persistence interfaces and
// implementations.
package store

import (
	"context"
	"time"

	"github.com/hakku-ai/gateway/internal/domain"
)

// AttemptStore is the capability interface for daily attempt counters.
// The gateway only ever needs to read a counter and to atomically bump
// it; keeping the surface this small lets the backing store be swapped
// at composition time (SQLite in production, in-memory in tests).
type AttemptStore interface {
	// Get returns the current attempt count for key, 0 if no record exists.
	Get(ctx context.Context, key domain.AttemptKey) (int, error)

	// Increment atomically increments the counter for key unless it has
	// already reached limit. It returns the resulting count and whether
	// the attempt was allowed. When the counter is at the limit the
	// stored value is left untouched and allowed is false.
	Increment(ctx context.Context, key domain.AttemptKey, limit int) (count int, allowed bool, err error)

	// DeleteOlderThan removes counters whose day is strictly before the
	// cutoff date and returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
