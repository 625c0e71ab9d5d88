package conversion

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/integration"
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

// MockOutboxRepository is a mock implementation of conversion.OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, entry *conversion.OutboxEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*conversion.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversion.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) FindPendingByOrder(ctx context.Context, orderID uuid.UUID, eventName conversion.EventName) (*conversion.OutboxEntry, error) {
	args := m.Called(ctx, orderID, eventName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversion.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) ClaimDue(ctx context.Context, now, until time.Time, limit int) ([]*conversion.OutboxEntry, error) {
	args := m.Called(ctx, now, until, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*conversion.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) Update(ctx context.Context, entry *conversion.OutboxEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOutboxRepository) CountByStatus(ctx context.Context) (map[conversion.OutboxStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[conversion.OutboxStatus]int64), args.Error(1)
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

// MockConversionGateway is a mock implementation of integration.ConversionGateway
type MockConversionGateway struct {
	mock.Mock
}

func (m *MockConversionGateway) Send(ctx context.Context, payload conversion.EventPayload, accessToken string) integration.DeliveryResult {
	args := m.Called(ctx, payload, accessToken)
	return args.Get(0).(integration.DeliveryResult)
}

// MockPurchaseSender is a mock implementation of PurchaseSender
type MockPurchaseSender struct {
	mock.Mock
}

func (m *MockPurchaseSender) SendPurchase(ctx context.Context, orderID uuid.UUID) (*PurchaseResult, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PurchaseResult), args.Error(1)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func createSyncedOrder(t *testing.T) *fulfillment.Order {
	t.Helper()

	order, err := fulfillment.NewOrder(fulfillment.NewOrderParams{
		OrderNumber: "VLR-2001",
		Status:      fulfillment.OrderStatusPending,
		Customer: fulfillment.Customer{
			FullName: "Maria Ionescu",
			Phone:    "0722 123 456",
			County:   "Iasi",
			City:     "Iasi",
			Address:  "Bd. Independentei 5",
		},
		ProductSKU:      "SKU1",
		ProductName:     "Serum",
		Quantity:        2,
		Subtotal:        decimal.NewFromInt(100),
		ShippingCost:    decimal.NewFromInt(15),
		Total:           decimal.NewFromInt(115),
		LandingPageSlug: "serum-lp",
		StoreID:         uuid.New(),
	})
	require.NoError(t, err)
	require.NoError(t, order.MarkSynced("HS-1", fulfillment.OrderStatusPending, fixedNow))
	order.ClearDomainEvents()
	return order
}

func landingPageFor(order *fulfillment.Order, pixel storefront.PixelCredentials) *storefront.LandingPage {
	return &storefront.LandingPage{
		ID:      uuid.New(),
		Slug:    order.LandingPageSlug,
		StoreID: order.StoreID,
		URL:     "https://velaro.ro/serum",
		Pixel:   pixel,
	}
}

func storeFor(order *fulfillment.Order, pixel storefront.PixelCredentials) *storefront.Store {
	return &storefront.Store{
		ID:    order.StoreID,
		Name:  "Velaro RO",
		URL:   "https://velaro.ro",
		Pixel: pixel,
	}
}

func createPendingEntry(t *testing.T, order *fulfillment.Order, attempts int) *conversion.OutboxEntry {
	t.Helper()

	payload := conversion.NewPurchasePayload("PIXEL-1", "", conversion.CredentialRef{
		LandingPageSlug: order.LandingPageSlug,
		StoreID:         order.StoreID.String(),
	}, conversion.PurchaseEvent{EventID: conversion.PurchaseEventID(order.ID)})

	entry, err := conversion.NewOutboxEntry(order.ID, payload, "timeout", fixedNow.Add(-time.Hour), conversion.DefaultRetryPolicy())
	require.NoError(t, err)
	entry.Attempts = attempts
	return entry
}
