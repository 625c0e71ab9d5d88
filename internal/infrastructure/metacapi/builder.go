package metacapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/storefront"
)

// ContentTypeProduct marks contents as product ids
const ContentTypeProduct = "product"

// PurchaseBuilder turns a synced order into a Purchase event payload
type PurchaseBuilder struct {
	normalizer *Normalizer
	currency   string
}

// NewPurchaseBuilder creates a builder using the region and currency from config
func NewPurchaseBuilder(config *Config) *PurchaseBuilder {
	region := DefaultRegion
	currency := DefaultCurrency
	if config != nil {
		if config.DefaultRegion != "" {
			region = config.DefaultRegion
		}
		if config.Currency != "" {
			currency = config.Currency
		}
	}
	return &PurchaseBuilder{
		normalizer: NewNormalizer(region),
		currency:   currency,
	}
}

// PurchaseInput holds what the builder needs beyond the order itself
type PurchaseInput struct {
	Order       *fulfillment.Order
	Pixel       storefront.PixelCredentials
	Credentials conversion.CredentialRef
	SourceURL   string
	EventTime   time.Time
}

// Build assembles the payload. The token in Pixel is not copied into it.
func (b *PurchaseBuilder) Build(in PurchaseInput) conversion.EventPayload {
	order := in.Order
	event := conversion.PurchaseEvent{
		EventTime:      in.EventTime.Unix(),
		EventID:        conversion.PurchaseEventID(order.ID),
		EventSourceURL: in.SourceURL,
		ActionSource:   ActionSourceWebsite,
		UserData:       b.UserData(order.Customer),
		CustomData:     b.customData(order),
	}
	return conversion.NewPurchasePayload(in.Pixel.PixelID, in.Pixel.TestEventCode, in.Credentials, event)
}

// UserData hashes the customer identifiers, omitting empty ones
func (b *PurchaseBuilder) UserData(c fulfillment.Customer) conversion.UserData {
	n := b.normalizer
	first, last := c.SplitName()
	return conversion.UserData{
		Phone:     Hash(n.Phone(c.Phone)),
		FirstName: Hash(n.Text(first)),
		LastName:  Hash(n.Text(last)),
		City:      Hash(n.Text(c.City)),
		State:     Hash(n.Text(c.County)),
		Country:   Hash(n.Country()),
	}
}

func (b *PurchaseBuilder) customData(order *fulfillment.Order) conversion.CustomData {
	qty := decimal.NewFromInt(int64(order.Quantity))
	contents := make([]conversion.Content, 0, len(order.Upsells)+1)
	contents = append(contents, conversion.Content{
		ID:        order.ProductSKU,
		Quantity:  order.Quantity,
		ItemPrice: order.Subtotal.Div(qty).Round(2).InexactFloat64(),
	})
	for _, u := range order.Upsells {
		contents = append(contents, conversion.Content{
			ID:        u.SKU,
			Quantity:  u.Quantity,
			ItemPrice: u.Price.Round(2).InexactFloat64(),
		})
	}
	return conversion.CustomData{
		Value:       order.WMSTotal().Round(2).InexactFloat64(),
		Currency:    b.currency,
		OrderID:     order.OrderNumber,
		ContentType: ContentTypeProduct,
		Contents:    contents,
	}
}
