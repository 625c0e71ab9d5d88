package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/integration"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/domain/storefront"
	"github.com/velaro/ordersync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Syncer pushes an order to the WMS
type Syncer interface {
	Sync(ctx context.Context, order *fulfillment.Order) integration.SyncResult
}

// WMSSyncer resolves the storefront data an order references and hands the
// order to the WMS gateway
type WMSSyncer struct {
	landingPages storefront.LandingPageRepository
	stores       storefront.StoreRepository
	catalog      storefront.ProductCatalog
	gateway      integration.WMSGateway
	metrics      *telemetry.SyncMetrics
	logger       *zap.Logger
}

// NewWMSSyncer creates a new WMSSyncer
func NewWMSSyncer(
	landingPages storefront.LandingPageRepository,
	stores storefront.StoreRepository,
	catalog storefront.ProductCatalog,
	gateway integration.WMSGateway,
	logger *zap.Logger,
) *WMSSyncer {
	return &WMSSyncer{
		landingPages: landingPages,
		stores:       stores,
		catalog:      catalog,
		gateway:      gateway,
		logger:       logger,
	}
}

// SetMetrics sets the sync counters
func (s *WMSSyncer) SetMetrics(metrics *telemetry.SyncMetrics) {
	s.metrics = metrics
}

// Sync creates the order in the WMS. An order that already carries a WMS id
// is acknowledged without calling the gateway again. Lookup failures come
// back as failed results.
func (s *WMSSyncer) Sync(ctx context.Context, order *fulfillment.Order) integration.SyncResult {
	if order.IsSynced() {
		return integration.SyncSucceeded(*order.HelpshipOrderID)
	}

	ctx, span := telemetry.StartSpan(ctx, "wms.create_order",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, order.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderNumber, order.OrderNumber),
	)
	defer span.End()

	start := time.Now()
	result := s.sync(ctx, order)

	outcome := telemetry.OutcomeSucceeded
	if result.Succeeded() {
		telemetry.SetAttributes(span, telemetry.SpanAttrHelpshipOrderID, result.HelpshipOrderID)
	} else {
		outcome = telemetry.OutcomeFailed
		telemetry.MarkFailed(span, result.Reason)
		s.logger.Warn("WMS sync failed",
			zap.String("order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.Bool("upstream_data_missing", result.IsUpstreamDataMissing()),
			zap.String("reason", result.Reason),
		)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, outcome)
	s.metrics.RecordWMSSync(ctx, outcome, time.Since(start))

	return result
}

func (s *WMSSyncer) sync(ctx context.Context, order *fulfillment.Order) integration.SyncResult {
	page, err := s.landingPages.FindBySlug(ctx, order.LandingPageSlug)
	if err != nil {
		return integration.SyncFailed(lookupError(err, integration.ErrLandingPageNotFound, "landing page "+order.LandingPageSlug))
	}

	store, err := s.stores.FindByID(ctx, order.StoreID)
	if err != nil {
		return integration.SyncFailed(lookupError(err, integration.ErrStoreNotFound, "store "+order.StoreID.String()))
	}

	names, err := s.productNames(ctx, order)
	if err != nil {
		return integration.SyncFailed(err)
	}

	sourceURL := page.URL
	if sourceURL == "" {
		sourceURL = store.URL
	}

	return s.gateway.CreateOrder(ctx, integration.WMSOrderInput{
		Order:        order,
		ProductNames: names,
		SourceURL:    sourceURL,
	})
}

// productNames maps every SKU on the order to its catalog name. The main
// product may fall back to the name captured at checkout; upsells may not.
func (s *WMSSyncer) productNames(ctx context.Context, order *fulfillment.Order) (map[string]string, error) {
	skus := make([]string, 0, len(order.Upsells)+1)
	skus = append(skus, order.ProductSKU)
	for _, u := range order.Upsells {
		skus = append(skus, u.SKU)
	}

	products, err := s.catalog.FindBySKUs(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}

	names := make(map[string]string, len(skus))
	if p, ok := products[order.ProductSKU]; ok && p.Name != "" {
		names[order.ProductSKU] = p.Name
	} else if order.ProductName != "" {
		names[order.ProductSKU] = order.ProductName
	} else {
		return nil, fmt.Errorf("%w: %s", integration.ErrProductNotFound, order.ProductSKU)
	}

	for _, u := range order.Upsells {
		p, ok := products[u.SKU]
		if !ok {
			return nil, fmt.Errorf("%w: upsell %s", integration.ErrProductNotFound, u.SKU)
		}
		names[u.SKU] = p.Name
	}
	return names, nil
}

// lookupError classifies a repository error. Not found becomes the upstream
// sentinel, anything else stays a plain failure.
func lookupError(err error, missing error, what string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: %s", missing, what)
	}
	return fmt.Errorf("%s lookup: %w", what, err)
}

var _ Syncer = (*WMSSyncer)(nil)
