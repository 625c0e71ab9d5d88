package fulfillment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/velaro/ordersync/internal/domain/shared"
)

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusQueue     OrderStatus = "queue"
	OrderStatusTesting   OrderStatus = "testing"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusHold      OrderStatus = "hold"
	OrderStatusSyncError OrderStatus = "sync_error"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusQueue, OrderStatusTesting, OrderStatusPending, OrderStatusConfirmed,
		OrderStatusCancelled, OrderStatusHold, OrderStatusSyncError:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// Ptr returns a pointer to a copy of the status
func (s OrderStatus) Ptr() *OrderStatus {
	return &s
}

// CanTransitionTo checks if the status can transition to the target status.
// Leaving hold or cancelled is further restricted to the recorded snapshot by
// Unhold and Uncancel.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusQueue, OrderStatusTesting:
		return target == OrderStatusPending || target == OrderStatusCancelled ||
			target == OrderStatusHold || target == OrderStatusSyncError
	case OrderStatusPending:
		return target == OrderStatusConfirmed || target == OrderStatusCancelled ||
			target == OrderStatusHold || target == OrderStatusSyncError
	case OrderStatusConfirmed:
		return target == OrderStatusCancelled || target == OrderStatusHold
	case OrderStatusHold:
		return target.isHoldable() || target == OrderStatusCancelled
	case OrderStatusSyncError:
		return target == OrderStatusPending || target == OrderStatusCancelled
	case OrderStatusCancelled:
		return target.isHoldable() || target == OrderStatusSyncError
	}
	return false
}

func (s OrderStatus) isHoldable() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusTesting, OrderStatusQueue:
		return true
	}
	return false
}

// MetaPurchaseStatus tracks delivery of the Purchase conversion event,
// independently of the order status
type MetaPurchaseStatus string

const (
	MetaPurchaseStatusPending MetaPurchaseStatus = "pending"
	MetaPurchaseStatusSent    MetaPurchaseStatus = "sent"
	MetaPurchaseStatusFailed  MetaPurchaseStatus = "failed"
)

// Customer is the shipping and contact snapshot taken when the order was placed
type Customer struct {
	FullName   string
	Phone      string
	County     string
	City       string
	Address    string
	PostalCode string
}

// SplitName splits the full name on the first space into first and last name
func (c Customer) SplitName() (first, last string) {
	name := strings.Join(strings.Fields(c.FullName), " ")
	first, last, _ = strings.Cut(name, " ")
	return first, last
}

// UpsellItem is an extra product accepted on top of the main product
type UpsellItem struct {
	SKU      string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// LineTotal returns price × quantity
func (u UpsellItem) LineTotal() decimal.Decimal {
	return u.Price.Mul(decimal.NewFromInt(int64(u.Quantity)))
}

// Order is the aggregate root of the fulfillment context
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber         string
	Status              OrderStatus
	QueueExpiresAt      *time.Time
	HoldFromStatus      *OrderStatus
	HoldNote            string
	CancelledFromStatus *OrderStatus
	HelpshipOrderID     *string
	SyncError           *string
	SyncedAt            *time.Time

	MetaPurchaseStatus    MetaPurchaseStatus
	MetaPurchaseEventID   *string
	MetaPurchaseSentAt    *time.Time
	MetaPurchaseLastError *string

	Customer        Customer
	ProductSKU      string
	ProductName     string
	Quantity        int
	Subtotal        decimal.Decimal
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal // as displayed at checkout, never sent to the WMS
	Upsells         []UpsellItem
	LandingPageSlug string
	StoreID         uuid.UUID
	Notes           string
}

// NewOrderParams carries the checkout snapshot for a new order
type NewOrderParams struct {
	OrderNumber     string
	Status          OrderStatus
	QueueExpiresAt  *time.Time
	Customer        Customer
	ProductSKU      string
	ProductName     string
	Quantity        int
	Subtotal        decimal.Decimal
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal
	Upsells         []UpsellItem
	LandingPageSlug string
	StoreID         uuid.UUID
	Notes           string
}

// NewOrder creates an order in queue, testing or pending status
func NewOrder(p NewOrderParams) (*Order, error) {
	switch p.Status {
	case OrderStatusQueue:
		if p.QueueExpiresAt == nil {
			return nil, shared.NewDomainError("INVALID_QUEUE_EXPIRY", "Queue orders require an expiry time")
		}
	case OrderStatusTesting, OrderStatusPending:
	default:
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Orders cannot be created in %s status", p.Status))
	}
	if p.OrderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if p.ProductSKU == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product SKU cannot be empty")
	}
	if p.Quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if p.Subtotal.IsNegative() || p.ShippingCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amounts cannot be negative")
	}
	for _, u := range p.Upsells {
		if u.SKU == "" || u.Quantity <= 0 || u.Price.IsNegative() {
			return nil, shared.NewDomainError("INVALID_UPSELL", fmt.Sprintf("Invalid upsell line %q", u.SKU))
		}
	}

	order := &Order{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(time.Now().UTC()),
		OrderNumber:        p.OrderNumber,
		Status:             p.Status,
		MetaPurchaseStatus: MetaPurchaseStatusPending,
		Customer:           p.Customer,
		ProductSKU:         p.ProductSKU,
		ProductName:        p.ProductName,
		Quantity:           p.Quantity,
		Subtotal:           p.Subtotal,
		ShippingCost:       p.ShippingCost,
		Total:              p.Total,
		Upsells:            append([]UpsellItem(nil), p.Upsells...),
		LandingPageSlug:    p.LandingPageSlug,
		StoreID:            p.StoreID,
		Notes:              p.Notes,
	}
	if p.Status == OrderStatusQueue {
		expires := *p.QueueExpiresAt
		order.QueueExpiresAt = &expires
	}
	return order, nil
}

// WMSTotal is the amount sent to the warehouse:
// subtotal + shipping + Σ(upsell.price × upsell.quantity).
// The stored Total is ignored because it can be stale.
func (o *Order) WMSTotal() decimal.Decimal {
	total := o.Subtotal.Add(o.ShippingCost)
	for _, u := range o.Upsells {
		total = total.Add(u.LineTotal())
	}
	return total
}

// IsSynced reports whether the WMS has ever acknowledged this order
func (o *Order) IsSynced() bool {
	return o.HelpshipOrderID != nil && *o.HelpshipOrderID != ""
}

// IsQueueExpired reports whether a queue order is past its expiry
func (o *Order) IsQueueExpired(now time.Time) bool {
	return o.Status == OrderStatusQueue && o.QueueExpiresAt != nil && o.QueueExpiresAt.Before(now)
}

// ---------------------------------------------------------------------------
// Sync preconditions
// ---------------------------------------------------------------------------

// CheckFinalize verifies the order can be forced from queue to pending
func (o *Order) CheckFinalize() error {
	if o.Status != OrderStatusQueue {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot finalize order in %s status", o.Status))
	}
	return nil
}

// CheckPromote verifies the order can be promoted from testing to pending
func (o *Order) CheckPromote() error {
	if o.Status != OrderStatusTesting {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot promote order in %s status", o.Status))
	}
	return nil
}

// CheckResync verifies the order is waiting for a manual resync
func (o *Order) CheckResync() error {
	if o.Status != OrderStatusSyncError {
		return shared.NewDomainError("NOT_SYNC_ERROR", fmt.Sprintf("Cannot resync order in %s status", o.Status))
	}
	return nil
}

// CheckConfirm verifies the order can be confirmed
func (o *Order) CheckConfirm() error {
	switch o.Status {
	case OrderStatusPending:
		return nil
	case OrderStatusConfirmed:
		return shared.NewDomainError("ALREADY_CONFIRMED", "Order is already confirmed")
	}
	return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm order in %s status", o.Status))
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

// MarkSynced records a successful WMS sync and moves the order to target.
// An existing WMS id is kept.
func (o *Order) MarkSynced(helpshipOrderID string, target OrderStatus, now time.Time) error {
	if helpshipOrderID == "" && !o.IsSynced() {
		return shared.NewDomainError("INVALID_HELPSHIP_ID", "WMS order id cannot be empty")
	}
	if target != OrderStatusPending && target != OrderStatusConfirmed {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Sync cannot move an order to %s", target))
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot move order from %s to %s", o.Status, target))
	}

	firstSync := !o.IsSynced()
	if firstSync {
		id := helpshipOrderID
		o.HelpshipOrderID = &id
		o.SyncedAt = &now
	}
	from := o.Status
	o.Status = target
	o.SyncError = nil
	o.Touch(now)

	if firstSync {
		o.AddDomainEvent(NewOrderSyncedEvent(o, from, now))
	}
	if target == OrderStatusConfirmed {
		o.AddDomainEvent(NewOrderConfirmedEvent(o, now))
	}
	return nil
}

// MarkSyncFailed records a failed WMS sync
func (o *Order) MarkSyncFailed(reason string, now time.Time) error {
	if o.Status != OrderStatusSyncError && !o.Status.CanTransitionTo(OrderStatusSyncError) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot record sync failure for order in %s status", o.Status))
	}
	if reason == "" {
		reason = "unknown sync error"
	}
	from := o.Status
	o.Status = OrderStatusSyncError
	o.SyncError = &reason
	o.Touch(now)

	o.AddDomainEvent(NewOrderSyncFailedEvent(o, from, reason, now))
	return nil
}

// Confirm moves an already synced pending order to confirmed
func (o *Order) Confirm(now time.Time) error {
	if err := o.CheckConfirm(); err != nil {
		return err
	}
	if !o.IsSynced() {
		return shared.NewDomainError("NOT_SYNCED", "Order must be synced before it can be confirmed")
	}
	o.Status = OrderStatusConfirmed
	o.Touch(now)

	o.AddDomainEvent(NewOrderConfirmedEvent(o, now))
	return nil
}

// Hold parks the order and remembers where it came from
func (o *Order) Hold(note string, now time.Time) error {
	if !o.Status.isHoldable() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot hold order in %s status", o.Status))
	}
	o.HoldFromStatus = o.Status.Ptr()
	o.HoldNote = strings.TrimSpace(note)
	o.Status = OrderStatusHold
	o.Touch(now)
	return nil
}

// Unhold restores exactly the status recorded by Hold
func (o *Order) Unhold(now time.Time) error {
	if o.Status != OrderStatusHold {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot unhold order in %s status", o.Status))
	}
	if o.HoldFromStatus == nil || !o.HoldFromStatus.isHoldable() {
		return shared.NewDomainError("MISSING_HOLD_SNAPSHOT", "Order has no status to restore")
	}
	o.Status = *o.HoldFromStatus
	o.HoldFromStatus = nil
	o.HoldNote = ""
	o.Touch(now)
	return nil
}

// Cancel cancels the order from any status except cancelled.
// A held order records the status it was held from.
func (o *Order) Cancel(now time.Time) error {
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel order in %s status", o.Status))
	}
	from := o.Status
	if o.Status == OrderStatusHold && o.HoldFromStatus != nil {
		from = *o.HoldFromStatus
	}
	o.CancelledFromStatus = from.Ptr()
	o.HoldFromStatus = nil
	o.HoldNote = ""
	o.Status = OrderStatusCancelled
	o.Touch(now)

	o.AddDomainEvent(NewOrderCancelledEvent(o, from, now))
	return nil
}

// Uncancel restores the status recorded by Cancel.
// Rows cancelled before the snapshot existed fall back to pending.
func (o *Order) Uncancel(now time.Time) error {
	if o.Status != OrderStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot uncancel order in %s status", o.Status))
	}
	target := OrderStatusPending
	if o.CancelledFromStatus != nil {
		target = *o.CancelledFromStatus
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot restore cancelled order to %s", target))
	}
	o.Status = target
	o.CancelledFromStatus = nil
	o.Touch(now)
	return nil
}

// ---------------------------------------------------------------------------
// Field updates
// ---------------------------------------------------------------------------

// UpdateFields carries the optional edits accepted with a confirm
type UpdateFields struct {
	Notes        *string
	CustomerName *string
	Phone        *string
	Address      *string
	City         *string
	County       *string
	PostalCode   *string
}

// IsEmpty reports whether no field is set
func (f UpdateFields) IsEmpty() bool {
	return f.Notes == nil && f.CustomerName == nil && f.Phone == nil && f.Address == nil &&
		f.City == nil && f.County == nil && f.PostalCode == nil
}

// ApplyUpdates applies confirm-time edits. Once the WMS holds the order its
// shipping data is frozen; notes stay editable.
func (o *Order) ApplyUpdates(f UpdateFields, now time.Time) error {
	if f.IsEmpty() {
		return nil
	}
	shipping := f.CustomerName != nil || f.Phone != nil || f.Address != nil ||
		f.City != nil || f.County != nil || f.PostalCode != nil
	if shipping && o.IsSynced() {
		return shared.NewDomainError("ORDER_FROZEN", "Shipping details cannot change after the order reached the warehouse")
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&o.Notes, f.Notes)
	set(&o.Customer.FullName, f.CustomerName)
	set(&o.Customer.Phone, f.Phone)
	set(&o.Customer.Address, f.Address)
	set(&o.Customer.City, f.City)
	set(&o.Customer.County, f.County)
	set(&o.Customer.PostalCode, f.PostalCode)
	o.Touch(now)
	return nil
}

// ---------------------------------------------------------------------------
// Conversion bookkeeping
// ---------------------------------------------------------------------------

// MarkPurchaseSent records a delivered Purchase event
func (o *Order) MarkPurchaseSent(eventID string, at time.Time) {
	o.MetaPurchaseStatus = MetaPurchaseStatusSent
	o.MetaPurchaseEventID = &eventID
	o.MetaPurchaseSentAt = &at
	o.MetaPurchaseLastError = nil
}

// MarkPurchaseFailed records a failed Purchase delivery attempt.
// A sent event is never downgraded.
func (o *Order) MarkPurchaseFailed(eventID, reason string) {
	if o.MetaPurchaseStatus == MetaPurchaseStatusSent {
		return
	}
	o.MetaPurchaseStatus = MetaPurchaseStatusFailed
	o.MetaPurchaseEventID = &eventID
	o.MetaPurchaseLastError = &reason
}
