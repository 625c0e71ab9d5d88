package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements fulfillment.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new order
func (r *GormOrderRepository) Create(ctx context.Context, order *fulfillment.Order) error {
	model := models.OrderModelFromDomain(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// UpdateStatus writes the status columns with a compare-and-set on the
// stored status and bumps the version
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, order *fulfillment.Order, expected fulfillment.OrderStatus) error {
	cols := models.StatusColumns(order)
	cols["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND status = ?", order.ID, expected).
		Updates(cols)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOr(ctx, order.ID, shared.ErrConcurrencyConflict)
	}

	order.IncrementVersion()
	return nil
}

// RecordHelpshipID sets the WMS id only where none is stored yet
func (r *GormOrderRepository) RecordHelpshipID(ctx context.Context, id uuid.UUID, helpshipOrderID string, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND (helpship_order_id IS NULL OR helpship_order_id = '')", id).
		Updates(map[string]any{
			"helpship_order_id": helpshipOrderID,
			"synced_at":         syncedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOr(ctx, id, nil)
	}
	return nil
}

// UpdateMetaPurchase writes the conversion bookkeeping columns. A row already
// marked sent is left untouched unless the new state is also sent.
func (r *GormOrderRepository) UpdateMetaPurchase(ctx context.Context, order *fulfillment.Order) error {
	query := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", order.ID)
	if order.MetaPurchaseStatus != fulfillment.MetaPurchaseStatusSent {
		query = query.Where("meta_purchase_status <> ?", fulfillment.MetaPurchaseStatusSent)
	}

	result := query.Updates(models.MetaPurchaseColumns(order))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOr(ctx, order.ID, nil)
	}
	return nil
}

// FindExpiredQueue returns queue orders whose expiry is before now, oldest first
func (r *GormOrderRepository) FindExpiredQueue(ctx context.Context, now time.Time, limit int) ([]*fulfillment.Order, error) {
	var rows []models.OrderModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND queue_expires_at < ?", fulfillment.OrderStatusQueue, now).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]*fulfillment.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].ToDomain())
	}
	return orders, nil
}

// CountByStatus returns the number of orders per status
func (r *GormOrderRepository) CountByStatus(ctx context.Context) (map[fulfillment.OrderStatus]int64, error) {
	var rows []struct {
		Status fulfillment.OrderStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[fulfillment.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// missingOr tells a missing row from a guarded update that matched nothing
func (r *GormOrderRepository) missingOr(ctx context.Context, id uuid.UUID, err error) error {
	var count int64
	if cerr := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", id).Count(&count).Error; cerr != nil {
		return cerr
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return err
}

var _ fulfillment.OrderRepository = (*GormOrderRepository)(nil)
