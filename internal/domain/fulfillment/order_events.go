package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderSynced     = "OrderSynced"
	EventTypeOrderSyncFailed = "OrderSyncFailed"
	EventTypeOrderConfirmed  = "OrderConfirmed"
	EventTypeOrderCancelled  = "OrderCancelled"
)

// OrderSyncedEvent is raised the first time the WMS acknowledges an order.
// It triggers the Purchase conversion event.
type OrderSyncedEvent struct {
	shared.BaseDomainEvent
	OrderID         uuid.UUID   `json:"order_id"`
	OrderNumber     string      `json:"order_number"`
	FromStatus      OrderStatus `json:"from_status"`
	Status          OrderStatus `json:"status"`
	HelpshipOrderID string      `json:"helpship_order_id"`
}

// NewOrderSyncedEvent creates a new OrderSyncedEvent
func NewOrderSyncedEvent(order *Order, from OrderStatus, at time.Time) *OrderSyncedEvent {
	return &OrderSyncedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderSynced, AggregateTypeOrder, order.ID, at),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		FromStatus:      from,
		Status:          order.Status,
		HelpshipOrderID: *order.HelpshipOrderID,
	}
}

// OrderSyncFailedEvent is raised when a WMS sync attempt fails
type OrderSyncFailedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	FromStatus  OrderStatus `json:"from_status"`
	Reason      string      `json:"reason"`
}

// NewOrderSyncFailedEvent creates a new OrderSyncFailedEvent
func NewOrderSyncFailedEvent(order *Order, from OrderStatus, reason string, at time.Time) *OrderSyncFailedEvent {
	return &OrderSyncFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderSyncFailed, AggregateTypeOrder, order.ID, at),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		FromStatus:      from,
		Reason:          reason,
	}
}

// OrderConfirmedEvent is raised when an order reaches confirmed
type OrderConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
}

// NewOrderConfirmedEvent creates a new OrderConfirmedEvent
func NewOrderConfirmedEvent(order *Order, at time.Time) *OrderConfirmedEvent {
	return &OrderConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderConfirmed, AggregateTypeOrder, order.ID, at),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
	}
}

// OrderCancelledEvent is raised when an order is cancelled
type OrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	FromStatus  OrderStatus `json:"from_status"`
	WasSynced   bool        `json:"was_synced"`
}

// NewOrderCancelledEvent creates a new OrderCancelledEvent
func NewOrderCancelledEvent(order *Order, from OrderStatus, at time.Time) *OrderCancelledEvent {
	return &OrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCancelled, AggregateTypeOrder, order.ID, at),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		FromStatus:      from,
		WasSynced:       order.IsSynced(),
	}
}
