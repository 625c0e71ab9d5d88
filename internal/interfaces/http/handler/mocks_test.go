package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	conversionapp "github.com/velaro/ordersync/internal/application/conversion"
	fulfillmentapp "github.com/velaro/ordersync/internal/application/fulfillment"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/interfaces/http/dto"
	"github.com/velaro/ordersync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// MockOrderOperations implements OrderOperations for testing
type MockOrderOperations struct {
	mock.Mock
}

func (m *MockOrderOperations) result(args mock.Arguments) (*fulfillmentapp.OrderResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillmentapp.OrderResult), args.Error(1)
}

func (m *MockOrderOperations) Get(ctx context.Context, id uuid.UUID) (*fulfillment.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.Order), args.Error(1)
}

func (m *MockOrderOperations) Confirm(ctx context.Context, id uuid.UUID, fields fulfillment.UpdateFields) (*fulfillmentapp.OrderResult, error) {
	return m.result(m.Called(ctx, id, fields))
}

func (m *MockOrderOperations) Cancel(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockOrderOperations) Uncancel(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockOrderOperations) Hold(ctx context.Context, id uuid.UUID, note string) (*fulfillmentapp.OrderResult, error) {
	return m.result(m.Called(ctx, id, note))
}

func (m *MockOrderOperations) Unhold(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockOrderOperations) Resync(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockOrderOperations) Finalize(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error) {
	return m.result(m.Called(ctx, id))
}

func (m *MockOrderOperations) Promote(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error) {
	return m.result(m.Called(ctx, id))
}

// MockQueueReaper implements QueueReaper for testing
type MockQueueReaper struct {
	mock.Mock
}

func (m *MockQueueReaper) Reap(ctx context.Context, now time.Time) (*fulfillmentapp.ReapReport, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillmentapp.ReapReport), args.Error(1)
}

// MockPurchaseSender implements PurchaseSender for testing
type MockPurchaseSender struct {
	mock.Mock
}

func (m *MockPurchaseSender) SendPurchase(ctx context.Context, orderID uuid.UUID) (*conversionapp.PurchaseResult, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversionapp.PurchaseResult), args.Error(1)
}

// MockOutboxSweeper implements OutboxSweeper for testing
type MockOutboxSweeper struct {
	mock.Mock
}

func (m *MockOutboxSweeper) Sweep(ctx context.Context, now time.Time) (*conversionapp.SweepReport, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversionapp.SweepReport), args.Error(1)
}

func (m *MockOutboxSweeper) Stats(ctx context.Context) (*conversionapp.OutboxStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversionapp.OutboxStats), args.Error(1)
}

func createTestOrder(t *testing.T, status fulfillment.OrderStatus) *fulfillment.Order {
	t.Helper()

	order, err := fulfillment.NewOrder(fulfillment.NewOrderParams{
		OrderNumber: "VLR-3001",
		Status:      status,
		Customer: fulfillment.Customer{
			FullName: "Maria Ionescu",
			Phone:    "0744555666",
			County:   "Iasi",
			City:     "Iasi",
			Address:  "Bd. Carol I 11",
		},
		ProductSKU:   "SKU1",
		ProductName:  "Serum",
		Quantity:     2,
		Subtotal:     decimal.RequireFromString("199.90"),
		ShippingCost: decimal.NewFromInt(15),
		Total:        decimal.RequireFromString("214.90"),
		Upsells: []fulfillment.UpsellItem{
			{SKU: "UP1", Name: "Cream", Price: decimal.NewFromInt(20), Quantity: 1},
		},
		LandingPageSlug: "serum-lp",
		StoreID:         uuid.New(),
	})
	require.NoError(t, err)
	return order
}

// doRequest serves one request through engine and decodes the envelope
func doRequest(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

// dataMap re-decodes the response data as a generic map
func dataMap(t *testing.T, resp dto.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
