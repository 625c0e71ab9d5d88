// Package storefront holds the read-only catalog data the fulfillment flow
// depends on: products (resolved by SKU), landing pages and stores, together
// with their conversion-tracking credentials.
package storefront

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable catalog item
type Product struct {
	ID    uuid.UUID
	SKU   string
	Name  string
	Price decimal.Decimal
}

// PixelCredentials identify a conversions-API dataset and the token used to
// write to it
type PixelCredentials struct {
	PixelID       string
	AccessToken   string
	TestEventCode string
}

// IsComplete reports whether both the pixel id and the token are set
func (c PixelCredentials) IsComplete() bool {
	return c.PixelID != "" && c.AccessToken != ""
}

// Store is the shop an order belongs to
type Store struct {
	ID    uuid.UUID
	Name  string
	URL   string
	Pixel PixelCredentials
}

// LandingPage is the page an order was placed from
type LandingPage struct {
	ID      uuid.UUID
	Slug    string
	StoreID uuid.UUID
	URL     string
	Pixel   PixelCredentials
}

// ResolvePixel returns the landing page credentials when complete, falling
// back to the store defaults. The test event code follows the chosen source.
func ResolvePixel(page *LandingPage, store *Store) (PixelCredentials, bool) {
	if page != nil && page.Pixel.IsComplete() {
		return page.Pixel, true
	}
	if store != nil && store.Pixel.IsComplete() {
		return store.Pixel, true
	}
	return PixelCredentials{}, false
}

// ProductCatalog resolves products by SKU
type ProductCatalog interface {
	// FindBySKUs returns the products found, keyed by SKU. Missing SKUs are
	// simply absent from the map.
	FindBySKUs(ctx context.Context, skus []string) (map[string]Product, error)
}

// LandingPageRepository looks up landing pages
type LandingPageRepository interface {
	FindBySlug(ctx context.Context, slug string) (*LandingPage, error)
}

// StoreRepository looks up stores
type StoreRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Store, error)
}
