package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	fulfillmentapp "github.com/velaro/ordersync/internal/application/fulfillment"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
)

// OrderOperations is the order lifecycle surface the handler drives
type OrderOperations interface {
	Get(ctx context.Context, id uuid.UUID) (*fulfillment.Order, error)
	Confirm(ctx context.Context, id uuid.UUID, fields fulfillment.UpdateFields) (*fulfillmentapp.OrderResult, error)
	Cancel(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error)
	Uncancel(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error)
	Hold(ctx context.Context, id uuid.UUID, note string) (*fulfillmentapp.OrderResult, error)
	Unhold(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error)
	Resync(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error)
	Finalize(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error)
	Promote(ctx context.Context, id uuid.UUID) (*fulfillmentapp.OrderResult, error)
}

// QueueReaper finalizes expired queue orders on demand
type QueueReaper interface {
	Reap(ctx context.Context, now time.Time) (*fulfillmentapp.ReapReport, error)
}

// OrderHandler handles the internal order lifecycle endpoints
type OrderHandler struct {
	BaseHandler
	orders OrderOperations
	reaper QueueReaper
	now    func() time.Time
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderOperations, reaper QueueReaper) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		reaper: reaper,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for manual reaps
func (h *OrderHandler) SetClock(now func() time.Time) {
	h.now = now
}

// ConfirmOrderRequest carries the optional edits applied before confirming.
// Shipping fields are rejected once the order reached the warehouse.
type ConfirmOrderRequest struct {
	Notes        *string `json:"notes" binding:"omitempty,max=1000"`
	CustomerName *string `json:"customer_name" binding:"omitempty,max=200"`
	Phone        *string `json:"phone" binding:"omitempty,max=32"`
	Address      *string `json:"address" binding:"omitempty,max=500"`
	City         *string `json:"city" binding:"omitempty,max=120"`
	County       *string `json:"county" binding:"omitempty,max=120"`
	PostalCode   *string `json:"postal_code" binding:"omitempty,max=16"`
}

func (r ConfirmOrderRequest) toFields() fulfillment.UpdateFields {
	return fulfillment.UpdateFields{
		Notes:        r.Notes,
		CustomerName: r.CustomerName,
		Phone:        r.Phone,
		Address:      r.Address,
		City:         r.City,
		County:       r.County,
		PostalCode:   r.PostalCode,
	}
}

// HoldOrderRequest carries the note stored with a hold
type HoldOrderRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// CustomerResponse is the shipping snapshot of an order
type CustomerResponse struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	County     string `json:"county"`
	City       string `json:"city"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
}

// UpsellResponse is one upsell line
type UpsellResponse struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID                  uuid.UUID        `json:"id"`
	OrderNumber         string           `json:"order_number"`
	Status              string           `json:"status"`
	QueueExpiresAt      *time.Time       `json:"queue_expires_at,omitempty"`
	HoldFromStatus      *string          `json:"hold_from_status,omitempty"`
	HoldNote            string           `json:"hold_note,omitempty"`
	CancelledFromStatus *string          `json:"cancelled_from_status,omitempty"`
	HelpshipOrderID     *string          `json:"helpship_order_id,omitempty"`
	SyncError           *string          `json:"sync_error,omitempty"`
	SyncedAt            *time.Time       `json:"synced_at,omitempty"`
	MetaPurchaseStatus  string           `json:"meta_purchase_status"`
	MetaPurchaseSentAt  *time.Time       `json:"meta_purchase_sent_at,omitempty"`
	Customer            CustomerResponse `json:"customer"`
	ProductSKU          string           `json:"product_sku"`
	ProductName         string           `json:"product_name"`
	Quantity            int              `json:"quantity"`
	Subtotal            decimal.Decimal  `json:"subtotal"`
	ShippingCost        decimal.Decimal  `json:"shipping_cost"`
	Total               decimal.Decimal  `json:"total"`
	Upsells             []UpsellResponse `json:"upsells"`
	LandingPageSlug     string           `json:"landing_page_slug"`
	StoreID             uuid.UUID        `json:"store_id"`
	Notes               string           `json:"notes,omitempty"`
	Version             int              `json:"version"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// OrderOperationResponse is the order after an operation and what its WMS sync did
type OrderOperationResponse struct {
	Order OrderResponse              `json:"order"`
	Sync  fulfillmentapp.SyncOutcome `json:"sync"`
}

func statusPtr(s *fulfillment.OrderStatus) *string {
	if s == nil {
		return nil
	}
	v := s.String()
	return &v
}

func toOrderResponse(o *fulfillment.Order) OrderResponse {
	upsells := make([]UpsellResponse, len(o.Upsells))
	for i, u := range o.Upsells {
		upsells[i] = UpsellResponse{SKU: u.SKU, Name: u.Name, Price: u.Price, Quantity: u.Quantity}
	}
	return OrderResponse{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		Status:              o.Status.String(),
		QueueExpiresAt:      o.QueueExpiresAt,
		HoldFromStatus:      statusPtr(o.HoldFromStatus),
		HoldNote:            o.HoldNote,
		CancelledFromStatus: statusPtr(o.CancelledFromStatus),
		HelpshipOrderID:     o.HelpshipOrderID,
		SyncError:           o.SyncError,
		SyncedAt:            o.SyncedAt,
		MetaPurchaseStatus:  string(o.MetaPurchaseStatus),
		MetaPurchaseSentAt:  o.MetaPurchaseSentAt,
		Customer: CustomerResponse{
			FullName:   o.Customer.FullName,
			Phone:      o.Customer.Phone,
			County:     o.Customer.County,
			City:       o.Customer.City,
			Address:    o.Customer.Address,
			PostalCode: o.Customer.PostalCode,
		},
		ProductSKU:      o.ProductSKU,
		ProductName:     o.ProductName,
		Quantity:        o.Quantity,
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		Upsells:         upsells,
		LandingPageSlug: o.LandingPageSlug,
		StoreID:         o.StoreID,
		Notes:           o.Notes,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOperationResponse(res *fulfillmentapp.OrderResult) OrderOperationResponse {
	return OrderOperationResponse{
		Order: toOrderResponse(res.Order),
		Sync:  res.Sync,
	}
}

// Get returns one order
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponse(order))
}

// Confirm applies the optional edits and confirms the order, syncing it to
// the warehouse first when it was never synced
func (h *OrderHandler) Confirm(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req ConfirmOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.orders.Confirm(c.Request.Context(), id, req.toFields())
	h.respond(c, res, err)
}

// Hold parks the order, remembering its current status
func (h *OrderHandler) Hold(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req HoldOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.orders.Hold(c.Request.Context(), id, req.Note)
	h.respond(c, res, err)
}

// Cancel cancels the order
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.simple(c, h.orders.Cancel)
}

// Uncancel restores a cancelled order
func (h *OrderHandler) Uncancel(c *gin.Context) {
	h.simple(c, h.orders.Uncancel)
}

// Unhold restores the status the order had before the hold
func (h *OrderHandler) Unhold(c *gin.Context) {
	h.simple(c, h.orders.Unhold)
}

// Resync retries the warehouse sync of an order in sync_error
func (h *OrderHandler) Resync(c *gin.Context) {
	h.simple(c, h.orders.Resync)
}

// Finalize moves a queue order to pending ahead of its expiry
func (h *OrderHandler) Finalize(c *gin.Context) {
	h.simple(c, h.orders.Finalize)
}

// Promote moves a testing order to pending
func (h *OrderHandler) Promote(c *gin.Context) {
	h.simple(c, h.orders.Promote)
}

// Reap finalizes every expired queue order now
func (h *OrderHandler) Reap(c *gin.Context) {
	report, err := h.reaper.Reap(c.Request.Context(), h.now().UTC())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

func (h *OrderHandler) simple(c *gin.Context, op func(context.Context, uuid.UUID) (*fulfillmentapp.OrderResult, error)) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	res, err := op(c.Request.Context(), id)
	h.respond(c, res, err)
}

func (h *OrderHandler) respond(c *gin.Context, res *fulfillmentapp.OrderResult, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toOperationResponse(res))
}
