package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/integration"
)

func TestNewOrder(t *testing.T) {
	order := NewOrder(t, "VLR-1")
	assert.Equal(t, fulfillment.OrderStatusPending, order.Status)
	assert.Equal(t, StoreID(), order.StoreID)
	assert.Equal(t, "208.99", order.WMSTotal().StringFixed(2))

	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queued := NewOrder(t, "VLR-2", WithQueueExpiry(expires), WithoutUpsells())
	assert.Equal(t, fulfillment.OrderStatusQueue, queued.Status)
	assert.Equal(t, expires, *queued.QueueExpiresAt)
	assert.Empty(t, queued.Upsells)
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("a"), NewTestUUID("a"))
	assert.NotEqual(t, NewTestUUID("a"), NewTestUUID("b"))
}

func TestStubWMS(t *testing.T) {
	wms := NewStubWMS(integration.SyncFailed(integration.ErrWMSUnavailable))

	first := wms.CreateOrder(context.Background(), integration.WMSOrderInput{})
	second := wms.CreateOrder(context.Background(), integration.WMSOrderInput{})

	assert.False(t, first.Succeeded())
	assert.True(t, second.Succeeded())
	assert.Equal(t, "HS-2", second.HelpshipOrderID)
	assert.Equal(t, 2, wms.Calls())
}

func TestMockEventHandler(t *testing.T) {
	handler := NewMockEventHandler(fulfillment.EventTypeOrderSynced)
	order := NewOrder(t, "VLR-3")

	_ = handler.Handle(context.Background(), fulfillment.NewOrderCancelledEvent(order, fulfillment.OrderStatusPending, time.Now()))

	assert.Equal(t, 1, handler.HandledCount())
	assert.Equal(t, []string{fulfillment.EventTypeOrderCancelled}, handler.HandledTypes())
	assert.True(t, WaitForCondition(t, func() bool { return handler.HandledCount() == 1 }, time.Second, time.Millisecond))
}
