package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/velaro/ordersync/internal/domain/conversion"
)

// OutboxEntryModel is the persistence model for conversion events awaiting
// redelivery. At most one pending row exists per (order_id, event_name),
// enforced by a partial unique index in the migrations.
type OutboxEntryModel struct {
	ID            uuid.UUID               `gorm:"type:uuid;primaryKey"`
	OrderID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	EventName     conversion.EventName    `gorm:"type:varchar(50);not null"`
	Payload       datatypes.JSON          `gorm:"type:jsonb;not null"`
	Attempts      int                     `gorm:"not null;default:0"`
	Status        conversion.OutboxStatus `gorm:"type:varchar(20);not null;index:idx_conversion_outbox_due,priority:1"`
	LastAttemptAt *time.Time
	NextRetryAt   *time.Time `gorm:"index:idx_conversion_outbox_due,priority:2"`
	LastError     string     `gorm:"type:text"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OutboxEntryModel) TableName() string {
	return "conversion_outbox"
}

// ToDomain converts the persistence model to a domain OutboxEntry
func (m *OutboxEntryModel) ToDomain() (*conversion.OutboxEntry, error) {
	var payload conversion.EventPayload
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode outbox payload %s: %w", m.ID, err)
	}
	return &conversion.OutboxEntry{
		ID:            m.ID,
		OrderID:       m.OrderID,
		EventName:     m.EventName,
		Payload:       payload,
		Attempts:      m.Attempts,
		Status:        m.Status,
		LastAttemptAt: m.LastAttemptAt,
		NextRetryAt:   m.NextRetryAt,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

// OutboxEntryModelFromDomain creates a new persistence model from a domain OutboxEntry
func OutboxEntryModelFromDomain(e *conversion.OutboxEntry) (*OutboxEntryModel, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode outbox payload: %w", err)
	}
	return &OutboxEntryModel{
		ID:            e.ID,
		OrderID:       e.OrderID,
		EventName:     e.EventName,
		Payload:       datatypes.JSON(payload),
		Attempts:      e.Attempts,
		Status:        e.Status,
		LastAttemptAt: e.LastAttemptAt,
		NextRetryAt:   e.NextRetryAt,
		LastError:     e.LastError,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}, nil
}

// RetryColumns returns the columns a retry attempt writes
func RetryColumns(e *conversion.OutboxEntry) map[string]any {
	return map[string]any{
		"attempts":        e.Attempts,
		"status":          e.Status,
		"last_attempt_at": e.LastAttemptAt,
		"next_retry_at":   e.NextRetryAt,
		"last_error":      e.LastError,
		"updated_at":      e.UpdatedAt,
	}
}
