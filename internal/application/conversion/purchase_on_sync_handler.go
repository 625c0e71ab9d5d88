package conversion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/shared"
	"go.uber.org/zap"
)

// PurchaseSender sends the Purchase event of an order
type PurchaseSender interface {
	SendPurchase(ctx context.Context, orderID uuid.UUID) (*PurchaseResult, error)
}

// PurchaseOnSyncHandler handles OrderSyncedEvent
// and sends the Purchase conversion event once the WMS accepted the order
type PurchaseOnSyncHandler struct {
	sender PurchaseSender
	logger *zap.Logger
}

// NewPurchaseOnSyncHandler creates a new handler for order synced events
func NewPurchaseOnSyncHandler(sender PurchaseSender, logger *zap.Logger) *PurchaseOnSyncHandler {
	return &PurchaseOnSyncHandler{
		sender: sender,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *PurchaseOnSyncHandler) EventTypes() []string {
	return []string{fulfillment.EventTypeOrderSynced}
}

// Handle processes an OrderSyncedEvent. The returned error only reaches the
// event bus, which logs it.
func (h *PurchaseOnSyncHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	syncedEvent, ok := event.(*fulfillment.OrderSyncedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", fulfillment.EventTypeOrderSynced),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			fulfillment.EventTypeOrderSynced, event.EventType())
	}

	result, err := h.sender.SendPurchase(ctx, syncedEvent.OrderID)
	if err != nil {
		h.logger.Error("failed to send purchase event for synced order",
			zap.String("order_id", syncedEvent.OrderID.String()),
			zap.String("order_number", syncedEvent.OrderNumber),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send purchase event: %w", err)
	}

	h.logger.Info("purchase event handled for synced order",
		zap.String("order_id", syncedEvent.OrderID.String()),
		zap.String("order_number", syncedEvent.OrderNumber),
		zap.String("outcome", string(result.Outcome)),
	)
	return nil
}
