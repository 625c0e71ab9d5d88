package fulfillment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// FindByID finds an order by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// Create inserts a new order
	Create(ctx context.Context, order *Order) error

	// UpdateStatus writes the lifecycle, sync and editable customer fields of
	// the order only if the stored status still equals expected. Returns
	// shared.ErrConcurrencyConflict when the row has moved since it was read.
	UpdateStatus(ctx context.Context, order *Order, expected OrderStatus) error

	// RecordHelpshipID stores the WMS id of an order that has none yet,
	// regardless of its status. Used when a sync succeeded but the status write
	// lost a race.
	RecordHelpshipID(ctx context.Context, id uuid.UUID, helpshipOrderID string, syncedAt time.Time) error

	// UpdateMetaPurchase writes the conversion bookkeeping fields
	UpdateMetaPurchase(ctx context.Context, order *Order) error

	// FindExpiredQueue returns up to limit queue orders whose expiry is before
	// now, oldest created first
	FindExpiredQueue(ctx context.Context, now time.Time, limit int) ([]*Order, error)

	// CountByStatus returns the number of orders per status
	CountByStatus(ctx context.Context) (map[OrderStatus]int64, error)
}
