package integration

import (
	"context"

	"github.com/velaro/ordersync/internal/domain/conversion"
)

// DeliveryResult is the outcome of one conversion event delivery
type DeliveryResult struct {
	Kind           ResultKind
	StatusCode     int
	EventsReceived int
	Reason         string
	Err            error
}

// Delivered builds a successful DeliveryResult
func Delivered(statusCode, eventsReceived int) DeliveryResult {
	return DeliveryResult{Kind: ResultSucceeded, StatusCode: statusCode, EventsReceived: eventsReceived}
}

// DeliveryFailed builds a failed DeliveryResult
func DeliveryFailed(statusCode int, err error) DeliveryResult {
	if err == nil {
		err = ErrConversionRejected
	}
	return DeliveryResult{Kind: ResultFailed, StatusCode: statusCode, Reason: err.Error(), Err: err}
}

// Succeeded reports whether the endpoint accepted the event
func (r DeliveryResult) Succeeded() bool {
	return r.Kind == ResultSucceeded
}

// ConversionGateway delivers conversion events to the ad platform.
// Implementations never return errors directly; every failure is a DeliveryResult.
type ConversionGateway interface {
	Send(ctx context.Context, payload conversion.EventPayload, accessToken string) DeliveryResult
}
