// Package testutil holds fixtures and fakes shared by the integration tests.
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/velaro/ordersync/internal/domain/fulfillment"
)

// Fixture SKUs and slugs. SeedStorefront in the integration package creates
// the matching rows.
const (
	ProductSKU      = "SRM-30"
	UpsellSKU       = "CRM-50"
	LandingPageSlug = "serum-ro"
)

// NewTestUUID generates a deterministic UUID for testing.
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// StoreID is the store every fixture order belongs to
func StoreID() uuid.UUID {
	return NewTestUUID("test-store")
}

// OrderOption adjusts the parameters of a fixture order
type OrderOption func(*fulfillment.NewOrderParams)

// WithStatus sets the creation status
func WithStatus(status fulfillment.OrderStatus) OrderOption {
	return func(p *fulfillment.NewOrderParams) {
		p.Status = status
	}
}

// WithQueueExpiry creates the order in queue expiring at the given time
func WithQueueExpiry(at time.Time) OrderOption {
	return func(p *fulfillment.NewOrderParams) {
		p.Status = fulfillment.OrderStatusQueue
		p.QueueExpiresAt = &at
	}
}

// WithoutUpsells drops the upsell line
func WithoutUpsells() OrderOption {
	return func(p *fulfillment.NewOrderParams) {
		p.Upsells = nil
	}
}

// NewOrder builds a pending order for the fixture storefront
func NewOrder(t *testing.T, number string, opts ...OrderOption) *fulfillment.Order {
	t.Helper()

	params := fulfillment.NewOrderParams{
		OrderNumber: number,
		Status:      fulfillment.OrderStatusPending,
		Customer: fulfillment.Customer{
			FullName:   "Maria Ionescu",
			Phone:      "0744555666",
			County:     "Iasi",
			City:       "Iasi",
			Address:    "Bd. Stefan cel Mare 12",
			PostalCode: "700064",
		},
		ProductSKU:   ProductSKU,
		ProductName:  "Ser facial 30ml",
		Quantity:     1,
		Subtotal:     decimal.RequireFromString("149.00"),
		ShippingCost: decimal.RequireFromString("19.99"),
		Total:        decimal.RequireFromString("208.99"),
		Upsells: []fulfillment.UpsellItem{
			{SKU: UpsellSKU, Name: "Crema 50ml", Price: decimal.RequireFromString("40.00"), Quantity: 1},
		},
		LandingPageSlug: LandingPageSlug,
		StoreID:         StoreID(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	order, err := fulfillment.NewOrder(params)
	require.NoError(t, err)
	return order
}
