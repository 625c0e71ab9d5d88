package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/velaro/ordersync/internal/domain/fulfillment"
)

// UpsellLine is the JSON shape of one upsell item
type UpsellLine struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// OrderModel is the persistence model for the Order aggregate root
type OrderModel struct {
	AggregateModel
	OrderNumber         string                   `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status              fulfillment.OrderStatus  `gorm:"type:varchar(20);not null;index:idx_orders_status_expiry,priority:1"`
	QueueExpiresAt      *time.Time               `gorm:"index:idx_orders_status_expiry,priority:2"`
	HoldFromStatus      *fulfillment.OrderStatus `gorm:"type:varchar(20)"`
	HoldNote            string                   `gorm:"type:varchar(500)"`
	CancelledFromStatus *fulfillment.OrderStatus `gorm:"type:varchar(20)"`
	HelpshipOrderID     *string                  `gorm:"type:varchar(100)"`
	SyncError           *string                  `gorm:"type:text"`
	SyncedAt            *time.Time
	MetaPurchaseStatus  fulfillment.MetaPurchaseStatus `gorm:"type:varchar(20);not null;default:pending"`
	MetaPurchaseEventID *string                        `gorm:"type:varchar(100)"`
	MetaPurchaseSentAt  *time.Time
	MetaPurchaseError   *string                         `gorm:"column:meta_purchase_last_error;type:text"`
	CustomerName        string                          `gorm:"type:varchar(200);not null"`
	Phone               string                          `gorm:"type:varchar(50);not null"`
	County              string                          `gorm:"type:varchar(100)"`
	City                string                          `gorm:"type:varchar(100)"`
	Address             string                          `gorm:"type:varchar(500)"`
	PostalCode          string                          `gorm:"type:varchar(20)"`
	ProductSKU          string                          `gorm:"column:product_sku;type:varchar(100);not null"`
	ProductName         string                          `gorm:"type:varchar(200)"`
	Quantity            int                             `gorm:"not null"`
	Subtotal            decimal.Decimal                 `gorm:"type:decimal(12,2);not null"`
	ShippingCost        decimal.Decimal                 `gorm:"type:decimal(12,2);not null"`
	Total               decimal.Decimal                 `gorm:"type:decimal(12,2);not null"`
	Upsells             datatypes.JSONSlice[UpsellLine] `gorm:"type:jsonb"`
	LandingPageSlug     string                          `gorm:"type:varchar(200)"`
	StoreID             uuid.UUID                       `gorm:"type:uuid;not null"`
	Notes               string                          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *fulfillment.Order {
	upsells := make([]fulfillment.UpsellItem, 0, len(m.Upsells))
	for _, u := range m.Upsells {
		upsells = append(upsells, fulfillment.UpsellItem{
			SKU:      u.SKU,
			Name:     u.Name,
			Price:    u.Price,
			Quantity: u.Quantity,
		})
	}
	return &fulfillment.Order{
		BaseAggregateRoot:     m.ToDomainAggregateRoot(),
		OrderNumber:           m.OrderNumber,
		Status:                m.Status,
		QueueExpiresAt:        m.QueueExpiresAt,
		HoldFromStatus:        m.HoldFromStatus,
		HoldNote:              m.HoldNote,
		CancelledFromStatus:   m.CancelledFromStatus,
		HelpshipOrderID:       m.HelpshipOrderID,
		SyncError:             m.SyncError,
		SyncedAt:              m.SyncedAt,
		MetaPurchaseStatus:    m.MetaPurchaseStatus,
		MetaPurchaseEventID:   m.MetaPurchaseEventID,
		MetaPurchaseSentAt:    m.MetaPurchaseSentAt,
		MetaPurchaseLastError: m.MetaPurchaseError,
		Customer: fulfillment.Customer{
			FullName:   m.CustomerName,
			Phone:      m.Phone,
			County:     m.County,
			City:       m.City,
			Address:    m.Address,
			PostalCode: m.PostalCode,
		},
		ProductSKU:      m.ProductSKU,
		ProductName:     m.ProductName,
		Quantity:        m.Quantity,
		Subtotal:        m.Subtotal,
		ShippingCost:    m.ShippingCost,
		Total:           m.Total,
		Upsells:         upsells,
		LandingPageSlug: m.LandingPageSlug,
		StoreID:         m.StoreID,
		Notes:           m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *fulfillment.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.Status = o.Status
	m.QueueExpiresAt = o.QueueExpiresAt
	m.HoldFromStatus = o.HoldFromStatus
	m.HoldNote = o.HoldNote
	m.CancelledFromStatus = o.CancelledFromStatus
	m.HelpshipOrderID = o.HelpshipOrderID
	m.SyncError = o.SyncError
	m.SyncedAt = o.SyncedAt
	m.MetaPurchaseStatus = o.MetaPurchaseStatus
	m.MetaPurchaseEventID = o.MetaPurchaseEventID
	m.MetaPurchaseSentAt = o.MetaPurchaseSentAt
	m.MetaPurchaseError = o.MetaPurchaseLastError
	m.CustomerName = o.Customer.FullName
	m.Phone = o.Customer.Phone
	m.County = o.Customer.County
	m.City = o.Customer.City
	m.Address = o.Customer.Address
	m.PostalCode = o.Customer.PostalCode
	m.ProductSKU = o.ProductSKU
	m.ProductName = o.ProductName
	m.Quantity = o.Quantity
	m.Subtotal = o.Subtotal
	m.ShippingCost = o.ShippingCost
	m.Total = o.Total
	m.Upsells = make(datatypes.JSONSlice[UpsellLine], 0, len(o.Upsells))
	for _, u := range o.Upsells {
		m.Upsells = append(m.Upsells, UpsellLine{SKU: u.SKU, Name: u.Name, Price: u.Price, Quantity: u.Quantity})
	}
	m.LandingPageSlug = o.LandingPageSlug
	m.StoreID = o.StoreID
	m.Notes = o.Notes
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *fulfillment.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// StatusColumns returns the columns written by a status transition. Nil
// pointers clear their column, except the WMS id and sync time: once the WMS
// holds the order they are never cleared.
func StatusColumns(o *fulfillment.Order) map[string]any {
	cols := map[string]any{
		"status":                o.Status,
		"queue_expires_at":      o.QueueExpiresAt,
		"hold_from_status":      o.HoldFromStatus,
		"hold_note":             o.HoldNote,
		"cancelled_from_status": o.CancelledFromStatus,
		"sync_error":            o.SyncError,
		"customer_name":         o.Customer.FullName,
		"phone":                 o.Customer.Phone,
		"county":                o.Customer.County,
		"city":                  o.Customer.City,
		"address":               o.Customer.Address,
		"postal_code":           o.Customer.PostalCode,
		"notes":                 o.Notes,
		"updated_at":            o.UpdatedAt,
	}
	if o.HelpshipOrderID != nil {
		cols["helpship_order_id"] = o.HelpshipOrderID
	}
	if o.SyncedAt != nil {
		cols["synced_at"] = o.SyncedAt
	}
	return cols
}

// MetaPurchaseColumns returns the conversion bookkeeping columns
func MetaPurchaseColumns(o *fulfillment.Order) map[string]any {
	return map[string]any{
		"meta_purchase_status":     o.MetaPurchaseStatus,
		"meta_purchase_event_id":   o.MetaPurchaseEventID,
		"meta_purchase_sent_at":    o.MetaPurchaseSentAt,
		"meta_purchase_last_error": o.MetaPurchaseLastError,
		"updated_at":               o.UpdatedAt,
	}
}
