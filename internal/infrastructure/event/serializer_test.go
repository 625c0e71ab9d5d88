package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velaro/ordersync/internal/domain/fulfillment"
)

func newSyncedOrder(t *testing.T) *fulfillment.Order {
	t.Helper()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	order, err := fulfillment.NewOrder(fulfillment.NewOrderParams{
		OrderNumber:    "RO-1001",
		Status:         fulfillment.OrderStatusQueue,
		QueueExpiresAt: &expires,
		Customer:       fulfillment.Customer{FullName: "Ion Popescu", Phone: "0722123456"},
		ProductSKU:     "SKU1",
		Quantity:       1,
		Subtotal:       decimal.NewFromInt(100),
		ShippingCost:   decimal.NewFromInt(15),
		StoreID:        uuid.New(),
	})
	require.NoError(t, err)
	require.NoError(t, order.MarkSynced("HS-1", fulfillment.OrderStatusPending, now))
	return order
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	s := NewEventSerializer()
	order := newSyncedOrder(t)
	events := order.GetDomainEvents()
	require.Len(t, events, 1)

	data, err := s.Serialize(events[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"helpship_order_id":"HS-1"`)

	decoded, err := s.Deserialize(fulfillment.EventTypeOrderSynced, data)
	require.NoError(t, err)

	synced, ok := decoded.(*fulfillment.OrderSyncedEvent)
	require.True(t, ok)
	assert.Equal(t, order.ID, synced.OrderID)
	assert.Equal(t, fulfillment.OrderStatusQueue, synced.FromStatus)
	assert.Equal(t, fulfillment.OrderStatusPending, synced.Status)
	assert.Equal(t, events[0].EventID(), synced.EventID())
}

func TestEventSerializer_UnknownType(t *testing.T) {
	s := NewEventSerializer()
	_, err := s.Deserialize("SomethingElse", []byte(`{}`))
	assert.ErrorContains(t, err, "unknown event type")
}

func TestEventSerializer_RegisteredTypes(t *testing.T) {
	assert.Equal(t, []string{
		fulfillment.EventTypeOrderCancelled,
		fulfillment.EventTypeOrderConfirmed,
		fulfillment.EventTypeOrderSyncFailed,
		fulfillment.EventTypeOrderSynced,
	}, NewEventSerializer().RegisteredTypes())
}
