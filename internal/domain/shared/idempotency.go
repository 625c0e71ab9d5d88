package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys for a bounded time. It backs both the
// "already processed" checks and the short leases that keep the queue reaper
// and the outbox sweep from running on several instances at once.
type IdempotencyStore interface {
	// MarkProcessed marks a key with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key is currently marked
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release removes a key before its TTL expires
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
