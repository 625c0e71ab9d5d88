package conversion

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventName discriminates conversion event payloads
type EventName string

const (
	EventNamePurchase EventName = "Purchase"
)

// IsValid checks if the event name is supported
func (n EventName) IsValid() bool {
	return n == EventNamePurchase
}

// String returns the string representation of EventName
func (n EventName) String() string {
	return string(n)
}

var (
	ErrUnknownEventName = errors.New("conversion: unknown event name")
	ErrMissingEvent     = errors.New("conversion: payload has no event body")
	ErrMissingPixel     = errors.New("conversion: pixel id is required")
)

// PurchaseEventID returns the deterministic dedup key for an order's Purchase
// event. Every attempt for the same order carries the same id.
func PurchaseEventID(orderID fmt.Stringer) string {
	return "purchase_" + orderID.String()
}

// CredentialRef points at the landing page or store whose access token is used
// to deliver the event. The token itself is never persisted.
type CredentialRef struct {
	LandingPageSlug string `json:"landing_page_slug,omitempty"`
	StoreID         string `json:"store_id,omitempty"`
}

// UserData holds SHA-256 hashed customer identifiers
type UserData struct {
	Phone     string `json:"ph,omitempty"`
	FirstName string `json:"fn,omitempty"`
	LastName  string `json:"ln,omitempty"`
	City      string `json:"ct,omitempty"`
	State     string `json:"st,omitempty"`
	Country   string `json:"country,omitempty"`
}

// Content is one purchased line
type Content struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	ItemPrice float64 `json:"item_price"`
}

// CustomData carries the purchase value and contents
type CustomData struct {
	Value       float64   `json:"value"`
	Currency    string    `json:"currency"`
	OrderID     string    `json:"order_id"`
	ContentType string    `json:"content_type,omitempty"`
	Contents    []Content `json:"contents,omitempty"`
}

// PurchaseEvent is one entry of the conversions request data array
type PurchaseEvent struct {
	EventName      EventName  `json:"event_name"`
	EventTime      int64      `json:"event_time"`
	EventID        string     `json:"event_id"`
	EventSourceURL string     `json:"event_source_url,omitempty"`
	ActionSource   string     `json:"action_source"`
	UserData       UserData   `json:"user_data"`
	CustomData     CustomData `json:"custom_data"`
}

// EventPayload is everything needed to redeliver an event without
// re-deriving it from the order
type EventPayload struct {
	EventName     EventName
	PixelID       string
	TestEventCode string
	Credentials   CredentialRef
	Purchase      *PurchaseEvent
}

// NewPurchasePayload wraps a purchase event for delivery
func NewPurchasePayload(pixelID, testEventCode string, creds CredentialRef, event PurchaseEvent) EventPayload {
	event.EventName = EventNamePurchase
	return EventPayload{
		EventName:     EventNamePurchase,
		PixelID:       pixelID,
		TestEventCode: testEventCode,
		Credentials:   creds,
		Purchase:      &event,
	}
}

// EventID returns the dedup key of the wrapped event
func (p EventPayload) EventID() string {
	if p.Purchase != nil {
		return p.Purchase.EventID
	}
	return ""
}

// Validate checks the payload shape matches its event name
func (p EventPayload) Validate() error {
	if p.PixelID == "" {
		return ErrMissingPixel
	}
	switch p.EventName {
	case EventNamePurchase:
		if p.Purchase == nil {
			return ErrMissingEvent
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEventName, p.EventName)
}

type payloadEnvelope struct {
	EventName     EventName       `json:"event_name"`
	PixelID       string          `json:"pixel_id"`
	TestEventCode string          `json:"test_event_code,omitempty"`
	Credentials   CredentialRef   `json:"credentials"`
	Event         json.RawMessage `json:"event"`
}

// MarshalJSON encodes the payload with its event body under "event"
func (p EventPayload) MarshalJSON() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(p.Purchase)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{
		EventName:     p.EventName,
		PixelID:       p.PixelID,
		TestEventCode: p.TestEventCode,
		Credentials:   p.Credentials,
		Event:         body,
	})
}

// UnmarshalJSON decodes the event body according to event_name
func (p *EventPayload) UnmarshalJSON(data []byte) error {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	out := EventPayload{
		EventName:     env.EventName,
		PixelID:       env.PixelID,
		TestEventCode: env.TestEventCode,
		Credentials:   env.Credentials,
	}
	switch env.EventName {
	case EventNamePurchase:
		if len(env.Event) == 0 || string(env.Event) == "null" {
			return ErrMissingEvent
		}
		var ev PurchaseEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return fmt.Errorf("conversion: decode purchase event: %w", err)
		}
		out.Purchase = &ev
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventName, env.EventName)
	}
	*p = out
	return nil
}
