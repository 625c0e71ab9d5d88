package conversion

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxRepository defines the interface for outbox persistence
type OutboxRepository interface {
	// Create persists a new entry. Returns shared.ErrAlreadyExists when the
	// order already has a pending entry for the same event name.
	Create(ctx context.Context, entry *OutboxEntry) error

	// FindByID retrieves a single outbox entry by ID
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)

	// FindPendingByOrder returns the pending entry of an order for an event
	// name, or shared.ErrNotFound
	FindPendingByOrder(ctx context.Context, orderID uuid.UUID, eventName EventName) (*OutboxEntry, error)

	// ClaimDue returns up to limit pending entries with next_retry_at <= now,
	// oldest created first, and moves their next_retry_at to until in the
	// same transaction. An entry claimed by one sweep is not due for another
	// until the claim lapses.
	ClaimDue(ctx context.Context, now, until time.Time, limit int) ([]*OutboxEntry, error)

	// Update writes the retry bookkeeping of an entry that is still pending in
	// the store. Returns shared.ErrConcurrencyConflict otherwise.
	Update(ctx context.Context, entry *OutboxEntry) error

	// CountByStatus returns count of entries for each status
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
