package helpship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velaro/ordersync/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from Helpship (1MB)
const maxResponseSize = 1 << 20

// maxErrorBody caps the response text kept on a failed order
const maxErrorBody = 500

// Client implements integration.WMSGateway against the Helpship REST API
type Client struct {
	config     *Config
	httpClient *http.Client
	tokens     *TokenCache
}

// NewClient creates a Helpship client using an existing token cache
func NewClient(config *Config, tokens *TokenCache, httpClient *http.Client) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		}
	}
	if tokens == nil {
		tokens = NewTokenCache(NewClientCredentialsSource(config, httpClient))
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		tokens:     tokens,
	}, nil
}

// New creates a Helpship client with its own HTTP client and token cache
func New(config *Config) (*Client, error) {
	return NewClient(config, nil, nil)
}

// CreateOrder pushes the order to the WMS. Every failure is returned as a
// failed SyncResult.
func (c *Client) CreateOrder(ctx context.Context, in integration.WMSOrderInput) integration.SyncResult {
	body, err := c.BuildRequest(in)
	if err != nil {
		return integration.SyncFailed(err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return integration.SyncFailed(err)
	}

	respBody, status, err := c.doRequest(ctx, token, body)
	if err != nil {
		return integration.SyncFailed(err)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.tokens.Invalidate()
		return integration.SyncFailed(fmt.Errorf("%w: HTTP %d: %s",
			integration.ErrWMSAuthFailed, status, truncate(string(respBody), maxErrorBody)))
	case status >= 500 || status == http.StatusTooManyRequests:
		return integration.SyncFailed(fmt.Errorf("%w: HTTP %d: %s",
			integration.ErrWMSUnavailable, status, truncate(string(respBody), maxErrorBody)))
	case status < 200 || status >= 300:
		return integration.SyncFailed(fmt.Errorf("%w: HTTP %d: %s",
			integration.ErrWMSRequestFailed, status, truncate(string(respBody), maxErrorBody)))
	}

	id := parseOrderID(respBody)
	if id == "" {
		return integration.SyncFailed(fmt.Errorf("%w: no order id in response: %s",
			integration.ErrWMSInvalidResponse, truncate(string(respBody), maxErrorBody)))
	}
	return integration.SyncSucceeded(id)
}

// BuildRequest maps an order snapshot onto the Helpship create-order body.
// The total is recomputed from subtotal, shipping and upsell lines.
func (c *Client) BuildRequest(in integration.WMSOrderInput) (*CreateOrderRequest, error) {
	order := in.Order
	if order == nil {
		return nil, fmt.Errorf("%w: nil order", integration.ErrWMSRequestFailed)
	}

	mainName := in.ProductNames[order.ProductSKU]
	if mainName == "" {
		mainName = order.ProductName
	}
	if mainName == "" {
		return nil, fmt.Errorf("%w: sku %s", integration.ErrProductNotFound, order.ProductSKU)
	}

	qty := decimal.NewFromInt(int64(order.Quantity))
	items := make([]OrderItem, 0, len(order.Upsells)+1)
	items = append(items, OrderItem{
		SKU:       order.ProductSKU,
		Name:      mainName,
		Quantity:  order.Quantity,
		UnitPrice: money(order.Subtotal.Div(qty)),
		Total:     money(order.Subtotal),
	})
	for _, u := range order.Upsells {
		name := in.ProductNames[u.SKU]
		if name == "" {
			return nil, fmt.Errorf("%w: upsell sku %s", integration.ErrProductNotFound, u.SKU)
		}
		items = append(items, OrderItem{
			SKU:       u.SKU,
			Name:      name,
			Quantity:  u.Quantity,
			UnitPrice: money(u.Price),
			Total:     money(u.LineTotal()),
		})
	}

	first, last := order.Customer.SplitName()
	total := order.WMSTotal()
	return &CreateOrderRequest{
		ExternalID:  order.ID.String(),
		OrderNumber: order.OrderNumber,
		Customer: Customer{
			FirstName: first,
			LastName:  last,
			Phone:     strings.TrimSpace(order.Customer.Phone),
		},
		ShippingAddress: Address{
			Street:     order.Customer.Address,
			City:       order.Customer.City,
			County:     order.Customer.County,
			PostalCode: order.Customer.PostalCode,
			Country:    c.config.Country,
		},
		Currency:       c.config.Currency,
		Subtotal:       money(order.Subtotal),
		ShippingCost:   money(order.ShippingCost),
		Total:          money(total),
		CashOnDelivery: money(total),
		Note:           order.Notes,
		Source:         in.SourceURL,
		Items:          items,
	}, nil
}

// ---------------------------------------------------------------------------
// Helper Methods
// ---------------------------------------------------------------------------

// doRequest posts the order and returns the raw body and status code
func (c *Client) doRequest(ctx context.Context, token string, payload *CreateOrderRequest) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("helpship: failed to encode order: %w", err)
	}

	endpoint := strings.TrimRight(c.config.APIBaseURL, "/") + "/api/Order"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("helpship: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", integration.ErrWMSUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: failed to read response: %v", integration.ErrWMSUnavailable, err)
	}
	return body, resp.StatusCode, nil
}

// money rounds to two decimals for the wire
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Ensure Client implements WMSGateway
var _ integration.WMSGateway = (*Client)(nil)

// Unconfigured is the gateway used when no Helpship credentials are set
// outside production. Every sync fails with ErrWMSNotConfigured so orders
// land in sync_error and can be resynced once credentials exist.
type Unconfigured struct{}

// CreateOrder always fails
func (Unconfigured) CreateOrder(context.Context, integration.WMSOrderInput) integration.SyncResult {
	return integration.SyncFailed(integration.ErrWMSNotConfigured)
}

var _ integration.WMSGateway = Unconfigured{}
