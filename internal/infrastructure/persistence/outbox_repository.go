package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements conversion.OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GormOutboxRepository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// Create persists a new entry. The pending lookup keeps the rule on stores
// without partial indexes; Postgres enforces it with a unique index.
func (r *GormOutboxRepository) Create(ctx context.Context, entry *conversion.OutboxEntry) error {
	if entry.Status == conversion.OutboxStatusPending {
		_, err := r.FindPendingByOrder(ctx, entry.OrderID, entry.EventName)
		if err == nil {
			return shared.ErrAlreadyExists
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
	}

	model, err := models.OutboxEntryModelFromDomain(entry)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByID retrieves a single outbox entry by ID
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*conversion.OutboxEntry, error) {
	var model models.OutboxEntryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindPendingByOrder returns the pending entry of an order for an event name
func (r *GormOutboxRepository) FindPendingByOrder(ctx context.Context, orderID uuid.UUID, eventName conversion.EventName) (*conversion.OutboxEntry, error) {
	var model models.OutboxEntryModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND event_name = ? AND status = ?", orderID, eventName, conversion.OutboxStatusPending).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// ClaimDue locks pending entries whose retry time has come, moves their
// retry time to until and commits. Rows locked by another claim are skipped
// and claimed rows stay hidden from other sweeps until until.
func (r *GormOutboxRepository) ClaimDue(ctx context.Context, now, until time.Time, limit int) ([]*conversion.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_retry_at <= ?", conversion.OutboxStatusPending, now).
			Order("created_at ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if err := query.Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		return tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"next_retry_at": until,
				"updated_at":    now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	entries := make([]*conversion.OutboxEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Update writes the retry bookkeeping of an entry still pending in the store
func (r *GormOutboxRepository) Update(ctx context.Context, entry *conversion.OutboxEntry) error {
	result := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("id = ? AND status = ?", entry.ID, conversion.OutboxStatusPending).
		Updates(models.RetryColumns(entry))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OutboxEntryModel{}).Where("id = ?", entry.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConcurrencyConflict
}

// CountByStatus returns count of entries for each status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[conversion.OutboxStatus]int64, error) {
	var rows []struct {
		Status conversion.OutboxStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[conversion.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

var _ conversion.OutboxRepository = (*GormOutboxRepository)(nil)
