package conversion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/integration"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/domain/storefront"
	"github.com/velaro/ordersync/internal/infrastructure/metacapi"
	"go.uber.org/zap"
)

var (
	pagePixel  = storefront.PixelCredentials{PixelID: "PIXEL-LP", AccessToken: "tok-lp", TestEventCode: "TEST1"}
	storePixel = storefront.PixelCredentials{PixelID: "PIXEL-STORE", AccessToken: "tok-store"}
)

type purchaseFixture struct {
	service *PurchaseService
	orders  *MockOrderRepository
	outbox  *MockOutboxRepository
	pages   *MockLandingPageRepository
	stores  *MockStoreRepository
	gateway *MockConversionGateway
}

func newPurchaseFixture() *purchaseFixture {
	f := &purchaseFixture{
		orders:  new(MockOrderRepository),
		outbox:  new(MockOutboxRepository),
		pages:   new(MockLandingPageRepository),
		stores:  new(MockStoreRepository),
		gateway: new(MockConversionGateway),
	}
	f.service = NewPurchaseService(
		f.orders,
		f.outbox,
		NewCredentialResolver(f.pages, f.stores),
		metacapi.NewPurchaseBuilder(nil),
		f.gateway,
		conversion.DefaultRetryPolicy(),
		zap.NewNop(),
	)
	f.service.SetClock(func() time.Time { return fixedNow })
	return f
}

func (f *purchaseFixture) withCredentials(order *fulfillment.Order, page, store storefront.PixelCredentials) {
	f.pages.On("FindBySlug", mock.Anything, order.LandingPageSlug).Return(landingPageFor(order, page), nil)
	f.stores.On("FindByID", mock.Anything, order.StoreID).Return(storeFor(order, store), nil)
}

func TestPurchaseService_SendPurchase_Delivered(t *testing.T) {
	f := newPurchaseFixture()
	order := createSyncedOrder(t)
	f.withCredentials(order, pagePixel, storePixel)

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.gateway.On("Send", mock.Anything, mock.MatchedBy(func(p conversion.EventPayload) bool {
		return p.PixelID == "PIXEL-LP" &&
			p.TestEventCode == "TEST1" &&
			p.EventID() == "purchase_"+order.ID.String() &&
			p.Purchase.EventSourceURL == "https://velaro.ro/serum" &&
			p.Credentials.LandingPageSlug == order.LandingPageSlug
	}), "tok-lp").Return(integration.Delivered(200, 1))
	f.orders.On("UpdateMetaPurchase", mock.Anything, order).Return(nil)

	result, err := f.service.SendPurchase(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, PurchaseSent, result.Outcome)
	assert.Equal(t, fulfillment.MetaPurchaseStatusSent, order.MetaPurchaseStatus)
	assert.Equal(t, fixedNow, *order.MetaPurchaseSentAt)
	f.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.gateway.AssertExpectations(t)
	f.orders.AssertExpectations(t)
}

func TestPurchaseService_SendPurchase_StoreFallback(t *testing.T) {
	f := newPurchaseFixture()
	order := createSyncedOrder(t)
	f.withCredentials(order, storefront.PixelCredentials{PixelID: "PIXEL-LP"}, storePixel)

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.gateway.On("Send", mock.Anything, mock.MatchedBy(func(p conversion.EventPayload) bool {
		return p.PixelID == "PIXEL-STORE" && p.TestEventCode == ""
	}), "tok-store").Return(integration.Delivered(200, 1))
	f.orders.On("UpdateMetaPurchase", mock.Anything, order).Return(nil)

	result, err := f.service.SendPurchase(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, PurchaseSent, result.Outcome)
	f.gateway.AssertExpectations(t)
}

func TestPurchaseService_SendPurchase_FailureQueuesEntry(t *testing.T) {
	f := newPurchaseFixture()
	order := createSyncedOrder(t)
	f.withCredentials(order, pagePixel, storePixel)

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.gateway.On("Send", mock.Anything, mock.Anything, "tok-lp").
		Return(integration.DeliveryFailed(500, integration.ErrConversionUnavailable))
	f.outbox.On("FindPendingByOrder", mock.Anything, order.ID, conversion.EventNamePurchase).Return(nil, shared.ErrNotFound)

	var created *conversion.OutboxEntry
	f.outbox.On("Create", mock.Anything, mock.AnythingOfType("*conversion.OutboxEntry")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*conversion.OutboxEntry) }).
		Return(nil)
	f.orders.On("UpdateMetaPurchase", mock.Anything, order).Return(nil)

	result, err := f.service.SendPurchase(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, PurchaseQueued, result.Outcome)
	require.NotNil(t, created)
	assert.Equal(t, created.ID, *result.OutboxEntryID)
	assert.Equal(t, 1, created.Attempts)
	assert.Equal(t, conversion.OutboxStatusPending, created.Status)
	assert.Equal(t, fixedNow.Add(5*time.Minute), *created.NextRetryAt)
	assert.Equal(t, "PIXEL-LP", created.Payload.PixelID)

	assert.Equal(t, fulfillment.MetaPurchaseStatusFailed, order.MetaPurchaseStatus)
	assert.Equal(t, integration.ErrConversionUnavailable.Error(), *order.MetaPurchaseLastError)
	f.outbox.AssertExpectations(t)
}

func TestPurchaseService_SendPurchase_ExistingPendingEntry(t *testing.T) {
	f := newPurchaseFixture()
	order := createSyncedOrder(t)
	existing := createPendingEntry(t, order, 2)
	f.withCredentials(order, pagePixel, storePixel)

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.gateway.On("Send", mock.Anything, mock.Anything, "tok-lp").
		Return(integration.DeliveryFailed(400, integration.ErrConversionRejected))
	f.outbox.On("FindPendingByOrder", mock.Anything, order.ID, conversion.EventNamePurchase).Return(existing, nil)
	f.orders.On("UpdateMetaPurchase", mock.Anything, order).Return(nil)

	result, err := f.service.SendPurchase(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, PurchaseAlreadyQueued, result.Outcome)
	assert.Equal(t, existing.ID, *result.OutboxEntryID)
	f.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPurchaseService_SendPurchase_ConcurrentCreate(t *testing.T) {
	f := newPurchaseFixture()
	order := createSyncedOrder(t)
	f.withCredentials(order, pagePixel, storePixel)

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.gateway.On("Send", mock.Anything, mock.Anything, "tok-lp").
		Return(integration.DeliveryFailed(503, integration.ErrConversionUnavailable))
	f.outbox.On("FindPendingByOrder", mock.Anything, order.ID, conversion.EventNamePurchase).Return(nil, shared.ErrNotFound)
	f.outbox.On("Create", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)
	f.orders.On("UpdateMetaPurchase", mock.Anything, order).Return(nil)

	result, err := f.service.SendPurchase(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, PurchaseAlreadyQueued, result.Outcome)
	assert.Nil(t, result.OutboxEntryID)
}

func TestPurchaseService_SendPurchase_CredentialsMissing(t *testing.T) {
	f := newPurchaseFixture()
	order := createSyncedOrder(t)
	f.withCredentials(order, storefront.PixelCredentials{}, storefront.PixelCredentials{AccessToken: "tok"})

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.orders.On("UpdateMetaPurchase", mock.Anything, order).Return(nil)

	result, err := f.service.SendPurchase(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, PurchaseNotConfigured, result.Outcome)
	assert.Equal(t, fulfillment.MetaPurchaseStatusFailed, order.MetaPurchaseStatus)
	assert.Equal(t, "conversion credentials not configured", *order.MetaPurchaseLastError)
	f.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	f.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.outbox.AssertNotCalled(t, "FindPendingByOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseService_SendPurchase_UnknownLandingPageUsesStore(t *testing.T) {
	f := newPurchaseFixture()
	order := createSyncedOrder(t)
	f.pages.On("FindBySlug", mock.Anything, order.LandingPageSlug).Return(nil, shared.ErrNotFound)
	f.stores.On("FindByID", mock.Anything, order.StoreID).Return(storeFor(order, storePixel), nil)

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	f.gateway.On("Send", mock.Anything, mock.MatchedBy(func(p conversion.EventPayload) bool {
		return p.Purchase.EventSourceURL == "https://velaro.ro"
	}), "tok-store").Return(integration.Delivered(200, 1))
	f.orders.On("UpdateMetaPurchase", mock.Anything, order).Return(nil)

	result, err := f.service.SendPurchase(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, PurchaseSent, result.Outcome)
}

func TestPurchaseService_SendPurchase_AlreadySent(t *testing.T) {
	f := newPurchaseFixture()
	order := createSyncedOrder(t)
	order.MarkPurchaseSent(conversion.PurchaseEventID(order.ID), fixedNow.Add(-time.Hour))

	f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)

	result, err := f.service.SendPurchase(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, PurchaseAlreadySent, result.Outcome)
	f.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "UpdateMetaPurchase", mock.Anything, mock.Anything)
}

func TestPurchaseService_SendPurchase_Errors(t *testing.T) {
	t.Run("order not found", func(t *testing.T) {
		f := newPurchaseFixture()
		order := createSyncedOrder(t)
		f.orders.On("FindByID", mock.Anything, order.ID).Return(nil, shared.ErrNotFound)

		_, err := f.service.SendPurchase(context.Background(), order.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("order not synced", func(t *testing.T) {
		f := newPurchaseFixture()
		order := createSyncedOrder(t)
		order.HelpshipOrderID = nil
		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)

		_, err := f.service.SendPurchase(context.Background(), order.ID)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_SYNCED", domainErr.Code)
	})

	t.Run("credential lookup fails", func(t *testing.T) {
		f := newPurchaseFixture()
		order := createSyncedOrder(t)
		dbErr := errors.New("connection reset")
		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.pages.On("FindBySlug", mock.Anything, order.LandingPageSlug).Return(nil, dbErr)

		_, err := f.service.SendPurchase(context.Background(), order.ID)
		assert.ErrorIs(t, err, dbErr)
		f.orders.AssertNotCalled(t, "UpdateMetaPurchase", mock.Anything, mock.Anything)
	})
}
