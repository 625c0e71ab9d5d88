package conversion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"go.uber.org/zap"
)

func TestPurchaseOnSyncHandler_EventTypes(t *testing.T) {
	handler := NewPurchaseOnSyncHandler(new(MockPurchaseSender), zap.NewNop())
	assert.Equal(t, []string{fulfillment.EventTypeOrderSynced}, handler.EventTypes())
}

func TestPurchaseOnSyncHandler_Handle(t *testing.T) {
	order := createSyncedOrder(t)
	event := fulfillment.NewOrderSyncedEvent(order, fulfillment.OrderStatusQueue, fixedNow)

	t.Run("sends purchase for synced order", func(t *testing.T) {
		sender := new(MockPurchaseSender)
		handler := NewPurchaseOnSyncHandler(sender, zap.NewNop())
		sender.On("SendPurchase", mock.Anything, order.ID).
			Return(&PurchaseResult{OrderID: order.ID, Outcome: PurchaseSent}, nil)

		err := handler.Handle(context.Background(), event)

		assert.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("send error is returned to the bus", func(t *testing.T) {
		sender := new(MockPurchaseSender)
		handler := NewPurchaseOnSyncHandler(sender, zap.NewNop())
		sender.On("SendPurchase", mock.Anything, order.ID).Return(nil, errors.New("db gone"))

		err := handler.Handle(context.Background(), event)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send purchase event")
	})

	t.Run("unexpected event type", func(t *testing.T) {
		sender := new(MockPurchaseSender)
		handler := NewPurchaseOnSyncHandler(sender, zap.NewNop())

		err := handler.Handle(context.Background(), fulfillment.NewOrderCancelledEvent(order, fulfillment.OrderStatusPending, fixedNow))

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected event type")
		sender.AssertNotCalled(t, "SendPurchase", mock.Anything, mock.Anything)
	})
}
