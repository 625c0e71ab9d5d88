package helpship

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Create order request
// ---------------------------------------------------------------------------

// CreateOrderRequest is the body of POST /api/Order
type CreateOrderRequest struct {
	ExternalID      string      `json:"externalId"`
	OrderNumber     string      `json:"orderNumber"`
	Customer        Customer    `json:"customer"`
	ShippingAddress Address     `json:"shippingAddress"`
	Currency        string      `json:"currency"`
	Subtotal        float64     `json:"subtotal"`
	ShippingCost    float64     `json:"shippingCost"`
	Total           float64     `json:"total"`
	CashOnDelivery  float64     `json:"cashOnDelivery"`
	Note            string      `json:"note,omitempty"`
	Source          string      `json:"source,omitempty"`
	Items           []OrderItem `json:"items"`
}

// Customer is the recipient
type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// Address is the shipping address
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	County     string `json:"county"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// OrderItem is one shipped line
type OrderItem struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

// ---------------------------------------------------------------------------
// Create order response
// ---------------------------------------------------------------------------

// createOrderResponse covers the id shapes the API has returned over time
type createOrderResponse struct {
	ID      json.RawMessage `json:"id"`
	OrderID json.RawMessage `json:"orderId"`
}

// parseOrderID extracts the created order id from a JSON object, a JSON
// string or a bare text body
func parseOrderID(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var resp createOrderResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		if id := rawID(resp.ID); id != "" {
			return id
		}
		return rawID(resp.OrderID)
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if !strings.ContainsAny(trimmed, "{}[]<> ") {
		return trimmed
	}
	return ""
}

// rawID reads an id that may be encoded as string or number
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
