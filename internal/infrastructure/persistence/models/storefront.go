package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velaro/ordersync/internal/domain/storefront"
)

// StoreModel is the persistence model for stores
type StoreModel struct {
	BaseModel
	Name               string `gorm:"type:varchar(200);not null"`
	URL                string `gorm:"type:varchar(500)"`
	PixelID            string `gorm:"type:varchar(100)"`
	PixelAccessToken   string `gorm:"type:text"`
	PixelTestEventCode string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (StoreModel) TableName() string {
	return "stores"
}

// ToDomain converts the persistence model to a domain Store
func (m *StoreModel) ToDomain() *storefront.Store {
	return &storefront.Store{
		ID:   m.ID,
		Name: m.Name,
		URL:  m.URL,
		Pixel: storefront.PixelCredentials{
			PixelID:       m.PixelID,
			AccessToken:   m.PixelAccessToken,
			TestEventCode: m.PixelTestEventCode,
		},
	}
}

// LandingPageModel is the persistence model for landing pages
type LandingPageModel struct {
	BaseModel
	Slug               string    `gorm:"type:varchar(200);not null;uniqueIndex"`
	StoreID            uuid.UUID `gorm:"type:uuid;not null;index"`
	URL                string    `gorm:"type:varchar(500)"`
	PixelID            string    `gorm:"type:varchar(100)"`
	PixelAccessToken   string    `gorm:"type:text"`
	PixelTestEventCode string    `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (LandingPageModel) TableName() string {
	return "landing_pages"
}

// ToDomain converts the persistence model to a domain LandingPage
func (m *LandingPageModel) ToDomain() *storefront.LandingPage {
	return &storefront.LandingPage{
		ID:      m.ID,
		Slug:    m.Slug,
		StoreID: m.StoreID,
		URL:     m.URL,
		Pixel: storefront.PixelCredentials{
			PixelID:       m.PixelID,
			AccessToken:   m.PixelAccessToken,
			TestEventCode: m.PixelTestEventCode,
		},
	}
}

// ProductModel is the persistence model for catalog products
type ProductModel struct {
	BaseModel
	SKU   string          `gorm:"column:sku;type:varchar(100);not null;uniqueIndex"`
	Name  string          `gorm:"type:varchar(200);not null"`
	Price decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() storefront.Product {
	return storefront.Product{
		ID:    m.ID,
		SKU:   m.SKU,
		Name:  m.Name,
		Price: m.Price,
	}
}

// NewBaseModel returns a BaseModel with a fresh id stamped at now
func NewBaseModel(now time.Time) BaseModel {
	return BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}
