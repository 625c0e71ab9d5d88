package integration

import (
	"context"
	"errors"

	"github.com/velaro/ordersync/internal/domain/fulfillment"
)

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// ResultKind tells a succeeded gateway call from a failed one
type ResultKind string

const (
	ResultSucceeded ResultKind = "succeeded"
	ResultFailed    ResultKind = "failed"
)

// SyncResult is the outcome of pushing an order to the WMS
type SyncResult struct {
	Kind            ResultKind
	HelpshipOrderID string
	// Reason is the human readable failure stored on the order
	Reason string
	// Err is the classified cause, matched with errors.Is
	Err error
}

// SyncSucceeded builds a successful SyncResult
func SyncSucceeded(helpshipOrderID string) SyncResult {
	return SyncResult{Kind: ResultSucceeded, HelpshipOrderID: helpshipOrderID}
}

// SyncFailed builds a failed SyncResult
func SyncFailed(err error) SyncResult {
	if err == nil {
		err = ErrWMSRequestFailed
	}
	return SyncResult{Kind: ResultFailed, Reason: err.Error(), Err: err}
}

// Succeeded reports whether the WMS acknowledged the order
func (r SyncResult) Succeeded() bool {
	return r.Kind == ResultSucceeded
}

// IsUpstreamDataMissing reports whether the failure came from local lookups
// rather than from the WMS itself
func (r SyncResult) IsUpstreamDataMissing() bool {
	return errors.Is(r.Err, ErrLandingPageNotFound) || errors.Is(r.Err, ErrStoreNotFound) ||
		errors.Is(r.Err, ErrProductNotFound)
}

// ---------------------------------------------------------------------------
// WMSGateway Port
// ---------------------------------------------------------------------------

// WMSOrderInput is everything the gateway needs to build the create-order call
type WMSOrderInput struct {
	Order *fulfillment.Order
	// ProductNames maps every SKU on the order to its catalog name
	ProductNames map[string]string
	// SourceURL is the landing page the order came from
	SourceURL string
}

// WMSGateway creates orders in the warehouse management system.
// Implementations never return errors directly; every failure is a SyncResult.
type WMSGateway interface {
	CreateOrder(ctx context.Context, in WMSOrderInput) SyncResult
}
