package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/integration"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/domain/storefront"
)

// MockOrderRepository is a mock implementation of fulfillment.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *fulfillment.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, order *fulfillment.Order, expected fulfillment.OrderStatus) error {
	args := m.Called(ctx, order, expected)
	return args.Error(0)
}

func (m *MockOrderRepository) RecordHelpshipID(ctx context.Context, id uuid.UUID, helpshipOrderID string, syncedAt time.Time) error {
	args := m.Called(ctx, id, helpshipOrderID, syncedAt)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateMetaPurchase(ctx context.Context, order *fulfillment.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindExpiredQueue(ctx context.Context, now time.Time, limit int) ([]*fulfillment.Order, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fulfillment.Order), args.Error(1)
}

func (m *MockOrderRepository) CountByStatus(ctx context.Context) (map[fulfillment.OrderStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[fulfillment.OrderStatus]int64), args.Error(1)
}

// MockEventBus is a mock implementation of EventBus for testing
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	m.Called(handler, eventTypes)
}

func (m *MockEventBus) Unsubscribe(handler shared.EventHandler) {
	m.Called(handler)
}

func (m *MockEventBus) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventBus) Stop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockWMSGateway is a mock implementation of integration.WMSGateway
type MockWMSGateway struct {
	mock.Mock
}

func (m *MockWMSGateway) CreateOrder(ctx context.Context, in integration.WMSOrderInput) integration.SyncResult {
	args := m.Called(ctx, in)
	return args.Get(0).(integration.SyncResult)
}

// MockSyncer is a mock implementation of Syncer
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, order *fulfillment.Order) integration.SyncResult {
	args := m.Called(ctx, order)
	return args.Get(0).(integration.SyncResult)
}

// MockLandingPageRepository is a mock implementation of storefront.LandingPageRepository
type MockLandingPageRepository struct {
	mock.Mock
}

func (m *MockLandingPageRepository) FindBySlug(ctx context.Context, slug string) (*storefront.LandingPage, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.LandingPage), args.Error(1)
}

// MockStoreRepository is a mock implementation of storefront.StoreRepository
type MockStoreRepository struct {
	mock.Mock
}

func (m *MockStoreRepository) FindByID(ctx context.Context, id uuid.UUID) (*storefront.Store, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Store), args.Error(1)
}

// MockProductCatalog is a mock implementation of storefront.ProductCatalog
type MockProductCatalog struct {
	mock.Mock
}

func (m *MockProductCatalog) FindBySKUs(ctx context.Context, skus []string) (map[string]storefront.Product, error) {
	args := m.Called(ctx, skus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]storefront.Product), args.Error(1)
}

// MockFinalizer is a mock implementation of Finalizer
type MockFinalizer struct {
	mock.Mock
}

func (m *MockFinalizer) Finalize(ctx context.Context, id uuid.UUID) (*OrderResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OrderResult), args.Error(1)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func createTestOrder(t *testing.T, status fulfillment.OrderStatus) *fulfillment.Order {
	t.Helper()

	var expires *time.Time
	if status == fulfillment.OrderStatusQueue {
		e := fixedNow.Add(-time.Minute)
		expires = &e
	}
	order, err := fulfillment.NewOrder(fulfillment.NewOrderParams{
		OrderNumber:    "VLR-1001",
		Status:         status,
		QueueExpiresAt: expires,
		Customer: fulfillment.Customer{
			FullName: "Ion Popescu",
			Phone:    "0722123456",
			County:   "Cluj",
			City:     "Cluj-Napoca",
			Address:  "Str. Memorandumului 1",
		},
		ProductSKU:   "SKU1",
		ProductName:  "Serum",
		Quantity:     1,
		Subtotal:     decimal.NewFromInt(100),
		ShippingCost: decimal.NewFromInt(15),
		Total:        decimal.NewFromInt(115),
		Upsells: []fulfillment.UpsellItem{
			{SKU: "UP1", Name: "Cream", Price: decimal.NewFromInt(20), Quantity: 1},
		},
		LandingPageSlug: "serum-lp",
		StoreID:         uuid.New(),
	})
	require.NoError(t, err)
	return order
}

// createSyncedOrder returns a pending order the WMS already holds
func createSyncedOrder(t *testing.T) *fulfillment.Order {
	t.Helper()

	order := createTestOrder(t, fulfillment.OrderStatusPending)
	id := "HS-100"
	synced := fixedNow.Add(-time.Hour)
	order.HelpshipOrderID = &id
	order.SyncedAt = &synced
	return order
}
