package metacapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from the Graph API (1MB)
const maxResponseSize = 1 << 20

// maxErrorBody caps the response text kept on a failed delivery
const maxErrorBody = 500

type eventsRequest struct {
	Data          []conversion.PurchaseEvent `json:"data"`
	TestEventCode string                     `json:"test_event_code,omitempty"`
}

type eventsResponse struct {
	EventsReceived int    `json:"events_received"`
	FBTraceID      string `json:"fbtrace_id"`
	Error          *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Client implements integration.ConversionGateway against the Graph API
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a conversions API client
func NewClient(config *Config, httpClient *http.Client) (*Client, error) {
	if config == nil {
		config = NewConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.timeout()}
	}
	return &Client{config: config, httpClient: httpClient}, nil
}

// Send delivers one event. Every failure is returned as a failed DeliveryResult.
func (c *Client) Send(ctx context.Context, payload conversion.EventPayload, accessToken string) integration.DeliveryResult {
	if err := payload.Validate(); err != nil {
		return integration.DeliveryFailed(0, fmt.Errorf("%w: %v", integration.ErrConversionRejected, err))
	}
	if accessToken == "" {
		return integration.DeliveryFailed(0, integration.ErrConversionNotConfigured)
	}

	body, err := json.Marshal(eventsRequest{
		Data:          []conversion.PurchaseEvent{*payload.Purchase},
		TestEventCode: payload.TestEventCode,
	})
	if err != nil {
		return integration.DeliveryFailed(0, fmt.Errorf("%w: encode request: %v", integration.ErrConversionRejected, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(payload.PixelID, accessToken), bytes.NewReader(body))
	if err != nil {
		return integration.DeliveryFailed(0, fmt.Errorf("%w: %v", integration.ErrConversionUnavailable, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return integration.DeliveryFailed(0, fmt.Errorf("%w: %v", integration.ErrConversionUnavailable, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return integration.DeliveryFailed(resp.StatusCode, fmt.Errorf("%w: read response: %v", integration.ErrConversionUnavailable, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return integration.DeliveryFailed(resp.StatusCode, fmt.Errorf("%w: status %d: %s",
			integration.ErrConversionRejected, resp.StatusCode, errorText(respBody)))
	}

	var parsed eventsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// A 2xx is an acceptance even when the body is unexpected
		return integration.Delivered(resp.StatusCode, 1)
	}
	return integration.Delivered(resp.StatusCode, parsed.EventsReceived)
}

func (c *Client) endpoint(pixelID, accessToken string) string {
	base := strings.TrimRight(c.config.GraphBaseURL, "/")
	q := url.Values{}
	q.Set("access_token", accessToken)
	return fmt.Sprintf("%s/%s/%s/events?%s", base, c.config.APIVersion, url.PathEscape(pixelID), q.Encode())
}

// errorText prefers the Graph API error message over the raw body
func errorText(body []byte) string {
	var parsed eventsResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return truncate(parsed.Error.Message, maxErrorBody)
	}
	return truncate(string(body), maxErrorBody)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Ensure Client implements ConversionGateway
var _ integration.ConversionGateway = (*Client)(nil)
