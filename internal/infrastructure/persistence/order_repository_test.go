package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/persistence/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// a second pooled connection would see a different in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.OrderModel{},
		&models.OutboxEntryModel{},
		&models.StoreModel{},
		&models.LandingPageModel{},
		&models.ProductModel{},
	)
	require.NoError(t, err)

	return db
}

func newTestOrder(t *testing.T, number string, status fulfillment.OrderStatus, expiresAt *time.Time) *fulfillment.Order {
	t.Helper()

	order, err := fulfillment.NewOrder(fulfillment.NewOrderParams{
		OrderNumber:    number,
		Status:         status,
		QueueExpiresAt: expiresAt,
		Customer: fulfillment.Customer{
			FullName: "Ion Popescu",
			Phone:    "0722123456",
			County:   "Cluj",
			City:     "Cluj-Napoca",
			Address:  "Str. Memorandumului 1",
		},
		ProductSKU:   "SKU1",
		ProductName:  "Serum",
		Quantity:     2,
		Subtotal:     decimal.NewFromInt(100),
		ShippingCost: decimal.NewFromInt(10),
		Total:        decimal.NewFromInt(150),
		Upsells: []fulfillment.UpsellItem{
			{SKU: "UP1", Name: "Cream", Price: decimal.NewFromInt(20), Quantity: 2},
		},
		LandingPageSlug: "serum-lp",
		StoreID:         uuid.New(),
	})
	require.NoError(t, err)
	return order
}

func TestGormOrderRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	order := newTestOrder(t, "VLR-1001", fulfillment.OrderStatusPending, nil)
	require.NoError(t, repo.Create(ctx, order))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "VLR-1001", found.OrderNumber)
	assert.Equal(t, fulfillment.OrderStatusPending, found.Status)
	assert.Equal(t, fulfillment.MetaPurchaseStatusPending, found.MetaPurchaseStatus)
	assert.Equal(t, 1, found.Version)
	require.Len(t, found.Upsells, 1)
	assert.Equal(t, "UP1", found.Upsells[0].SKU)
	assert.True(t, decimal.NewFromInt(20).Equal(found.Upsells[0].Price))
	assert.True(t, decimal.NewFromInt(150).Equal(found.WMSTotal()))
	assert.Equal(t, "Ion Popescu", found.Customer.FullName)

	t.Run("duplicate order number", func(t *testing.T) {
		dup := newTestOrder(t, "VLR-1001", fulfillment.OrderStatusPending, nil)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormOrderRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	expires := now.Add(-time.Minute)
	order := newTestOrder(t, "VLR-2001", fulfillment.OrderStatusQueue, &expires)
	require.NoError(t, repo.Create(ctx, order))

	t.Run("writes transition when status matches", func(t *testing.T) {
		require.NoError(t, order.MarkSynced("HS-1", fulfillment.OrderStatusPending, now))
		require.NoError(t, repo.UpdateStatus(ctx, order, fulfillment.OrderStatusQueue))
		assert.Equal(t, 2, order.Version)

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		require.NotNil(t, found.HelpshipOrderID)
		assert.Equal(t, "HS-1", *found.HelpshipOrderID)
		assert.NotNil(t, found.SyncedAt)
		assert.Equal(t, 2, found.Version)
	})

	t.Run("rejects stale expected status", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)

		require.NoError(t, order.Hold("customer asked to wait", now))
		require.NoError(t, repo.UpdateStatus(ctx, order, fulfillment.OrderStatusPending))

		require.NoError(t, stale.Cancel(now))
		err = repo.UpdateStatus(ctx, stale, fulfillment.OrderStatusPending)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, fulfillment.OrderStatusHold, found.Status)
		require.NotNil(t, found.HoldFromStatus)
		assert.Equal(t, fulfillment.OrderStatusPending, *found.HoldFromStatus)
		assert.Equal(t, "customer asked to wait", found.HoldNote)
	})

	t.Run("clears nullable columns", func(t *testing.T) {
		require.NoError(t, order.Unhold(now))
		require.NoError(t, repo.UpdateStatus(ctx, order, fulfillment.OrderStatusHold))

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, fulfillment.OrderStatusPending, found.Status)
		assert.Nil(t, found.HoldFromStatus)
		assert.Empty(t, found.HoldNote)
	})

	t.Run("missing order", func(t *testing.T) {
		ghost := newTestOrder(t, "VLR-2999", fulfillment.OrderStatusPending, nil)
		err := repo.UpdateStatus(ctx, ghost, fulfillment.OrderStatusPending)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormOrderRepository_RecordHelpshipID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	syncedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	order := newTestOrder(t, "VLR-2501", fulfillment.OrderStatusCancelled, nil)
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.RecordHelpshipID(ctx, order.ID, "HS-77", syncedAt))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found.HelpshipOrderID)
	assert.Equal(t, "HS-77", *found.HelpshipOrderID)
	assert.Equal(t, fulfillment.OrderStatusCancelled, found.Status)

	t.Run("existing id is kept", func(t *testing.T) {
		require.NoError(t, repo.RecordHelpshipID(ctx, order.ID, "HS-78", syncedAt))

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, "HS-77", *found.HelpshipOrderID)
	})

	t.Run("missing order", func(t *testing.T) {
		assert.ErrorIs(t, repo.RecordHelpshipID(ctx, uuid.New(), "HS-79", syncedAt), shared.ErrNotFound)
	})
}

func TestGormOrderRepository_UpdateStatus_KeepsRecordedHelpshipID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	order := newTestOrder(t, "VLR-2601", fulfillment.OrderStatusPending, nil)
	require.NoError(t, repo.Create(ctx, order))

	stale, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Nil(t, stale.HelpshipOrderID)

	require.NoError(t, repo.RecordHelpshipID(ctx, order.ID, "HS-80", now))

	require.NoError(t, stale.Hold("waiting on payment", now))
	require.NoError(t, repo.UpdateStatus(ctx, stale, fulfillment.OrderStatusPending))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, fulfillment.OrderStatusHold, found.Status)
	require.NotNil(t, found.HelpshipOrderID)
	assert.Equal(t, "HS-80", *found.HelpshipOrderID)
	assert.NotNil(t, found.SyncedAt)
}

func TestGormOrderRepository_UpdateMetaPurchase(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	order := newTestOrder(t, "VLR-3001", fulfillment.OrderStatusPending, nil)
	require.NoError(t, repo.Create(ctx, order))

	eventID := "purchase_" + order.ID.String()
	order.MarkPurchaseFailed(eventID, "graph timeout")
	require.NoError(t, repo.UpdateMetaPurchase(ctx, order))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, fulfillment.MetaPurchaseStatusFailed, found.MetaPurchaseStatus)
	require.NotNil(t, found.MetaPurchaseLastError)
	assert.Equal(t, "graph timeout", *found.MetaPurchaseLastError)

	order.MarkPurchaseSent(eventID, now)
	require.NoError(t, repo.UpdateMetaPurchase(ctx, order))

	t.Run("sent is never downgraded", func(t *testing.T) {
		stale := newTestOrder(t, "VLR-3001", fulfillment.OrderStatusPending, nil)
		stale.ID = order.ID
		stale.MarkPurchaseFailed(eventID, "late failure")
		require.NoError(t, repo.UpdateMetaPurchase(ctx, stale))

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, fulfillment.MetaPurchaseStatusSent, found.MetaPurchaseStatus)
		assert.Nil(t, found.MetaPurchaseLastError)
		assert.NotNil(t, found.MetaPurchaseSentAt)
	})

	t.Run("missing order", func(t *testing.T) {
		ghost := newTestOrder(t, "VLR-3999", fulfillment.OrderStatusPending, nil)
		assert.ErrorIs(t, repo.UpdateMetaPurchase(ctx, ghost), shared.ErrNotFound)
	})
}

func TestGormOrderRepository_FindExpiredQueue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	older := newTestOrder(t, "VLR-4001", fulfillment.OrderStatusQueue, &past)
	older.CreatedAt = now.Add(-2 * time.Hour)
	newer := newTestOrder(t, "VLR-4002", fulfillment.OrderStatusQueue, &past)
	newer.CreatedAt = now.Add(-time.Hour)
	waiting := newTestOrder(t, "VLR-4003", fulfillment.OrderStatusQueue, &future)
	inTest := newTestOrder(t, "VLR-4004", fulfillment.OrderStatusTesting, nil)

	for _, o := range []*fulfillment.Order{newer, older, waiting, inTest} {
		require.NoError(t, repo.Create(ctx, o))
	}

	expired, err := repo.FindExpiredQueue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "VLR-4001", expired[0].OrderNumber)
	assert.Equal(t, "VLR-4002", expired[1].OrderNumber)

	limited, err := repo.FindExpiredQueue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "VLR-4001", limited[0].OrderNumber)
}

func TestGormOrderRepository_CountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Hour)

	require.NoError(t, repo.Create(ctx, newTestOrder(t, "VLR-5001", fulfillment.OrderStatusPending, nil)))
	require.NoError(t, repo.Create(ctx, newTestOrder(t, "VLR-5002", fulfillment.OrderStatusPending, nil)))
	require.NoError(t, repo.Create(ctx, newTestOrder(t, "VLR-5003", fulfillment.OrderStatusQueue, &expires)))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[fulfillment.OrderStatusPending])
	assert.Equal(t, int64(1), counts[fulfillment.OrderStatusQueue])
	assert.Zero(t, counts[fulfillment.OrderStatusConfirmed])
}
