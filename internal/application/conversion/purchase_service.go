package conversion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/integration"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/metacapi"
	"github.com/velaro/ordersync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PayloadBuilder turns an order into a Purchase payload
type PayloadBuilder interface {
	Build(in metacapi.PurchaseInput) conversion.EventPayload
}

// PurchaseOutcome tells what SendPurchase did
type PurchaseOutcome string

const (
	PurchaseSent          PurchaseOutcome = "sent"
	PurchaseQueued        PurchaseOutcome = "queued"
	PurchaseAlreadyQueued PurchaseOutcome = "already_queued"
	PurchaseAlreadySent   PurchaseOutcome = "already_sent"
	PurchaseNotConfigured PurchaseOutcome = "not_configured"
)

// PurchaseResult is the result of one SendPurchase call
type PurchaseResult struct {
	OrderID       uuid.UUID       `json:"order_id"`
	EventID       string          `json:"event_id"`
	Outcome       PurchaseOutcome `json:"outcome"`
	Reason        string          `json:"reason,omitempty"`
	OutboxEntryID *uuid.UUID      `json:"outbox_entry_id,omitempty"`
}

// PurchaseService delivers the Purchase conversion event of synced orders
type PurchaseService struct {
	orderRepo  fulfillment.OrderRepository
	outboxRepo conversion.OutboxRepository
	resolver   *CredentialResolver
	builder    PayloadBuilder
	gateway    integration.ConversionGateway
	policy     conversion.RetryPolicy
	metrics    *telemetry.SyncMetrics
	now        func() time.Time
	logger     *zap.Logger
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	orderRepo fulfillment.OrderRepository,
	outboxRepo conversion.OutboxRepository,
	resolver *CredentialResolver,
	builder PayloadBuilder,
	gateway integration.ConversionGateway,
	policy conversion.RetryPolicy,
	logger *zap.Logger,
) *PurchaseService {
	return &PurchaseService{
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		resolver:   resolver,
		builder:    builder,
		gateway:    gateway,
		policy:     policy,
		now:        time.Now,
		logger:     logger,
	}
}

// SetMetrics sets the delivery counters
func (s *PurchaseService) SetMetrics(metrics *telemetry.SyncMetrics) {
	s.metrics = metrics
}

// SetClock replaces the time source
func (s *PurchaseService) SetClock(now func() time.Time) {
	s.now = now
}

// SendPurchase sends the Purchase event of an order directly. A failed
// delivery is queued in the outbox for the retry scheduler; it is a result,
// not an error.
func (s *PurchaseService) SendPurchase(ctx context.Context, orderID uuid.UUID) (*PurchaseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "PurchaseService", "SendPurchase",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID.String()),
	)
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	eventID := conversion.PurchaseEventID(order.ID)
	result := &PurchaseResult{OrderID: order.ID, EventID: eventID}

	if order.MetaPurchaseStatus == fulfillment.MetaPurchaseStatusSent {
		result.Outcome = PurchaseAlreadySent
		return result, nil
	}
	if !order.IsSynced() {
		return nil, shared.NewDomainError("NOT_SYNCED", "Purchase is only sent for orders the warehouse accepted")
	}

	ref := conversion.CredentialRef{
		LandingPageSlug: order.LandingPageSlug,
		StoreID:         order.StoreID.String(),
	}
	creds, ok, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	if !ok {
		s.logger.Warn("Purchase not sent, no pixel credentials",
			zap.String("order_id", order.ID.String()),
			zap.String("landing_page", order.LandingPageSlug),
			zap.String("store_id", order.StoreID.String()),
		)
		order.MarkPurchaseFailed(eventID, ReasonCredentialsMissing)
		if err := s.orderRepo.UpdateMetaPurchase(ctx, order); err != nil {
			return nil, err
		}
		result.Outcome = PurchaseNotConfigured
		result.Reason = ReasonCredentialsMissing
		return result, nil
	}

	payload := s.builder.Build(metacapi.PurchaseInput{
		Order:       order,
		Pixel:       creds.Pixel,
		Credentials: creds.Ref,
		SourceURL:   creds.SourceURL,
		EventTime:   now,
	})

	delivery := s.deliver(ctx, span, payload, creds.Pixel.AccessToken)
	if delivery.Succeeded() {
		order.MarkPurchaseSent(eventID, now)
		if err := s.orderRepo.UpdateMetaPurchase(ctx, order); err != nil {
			return nil, err
		}
		s.logger.Info("Purchase event delivered",
			zap.String("order_id", order.ID.String()),
			zap.String("event_id", eventID),
			zap.Int("events_received", delivery.EventsReceived),
		)
		result.Outcome = PurchaseSent
		return result, nil
	}

	result.Reason = delivery.Reason
	entryID, queued, err := s.enqueue(ctx, order.ID, payload, delivery.Reason, now)
	if err != nil {
		return nil, err
	}
	result.OutboxEntryID = entryID
	result.Outcome = PurchaseAlreadyQueued
	if queued {
		result.Outcome = PurchaseQueued
	}

	order.MarkPurchaseFailed(eventID, delivery.Reason)
	if err := s.orderRepo.UpdateMetaPurchase(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Warn("Purchase event delivery failed",
		zap.String("order_id", order.ID.String()),
		zap.String("event_id", eventID),
		zap.Int("status_code", delivery.StatusCode),
		zap.String("outcome", string(result.Outcome)),
		zap.String("reason", delivery.Reason),
	)
	return result, nil
}

func (s *PurchaseService) deliver(ctx context.Context, span trace.Span, payload conversion.EventPayload, token string) integration.DeliveryResult {
	delivery := s.gateway.Send(ctx, payload, token)
	outcome := telemetry.OutcomeSucceeded
	if !delivery.Succeeded() {
		outcome = telemetry.OutcomeFailed
		telemetry.MarkFailed(span, delivery.Reason)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, outcome)
	s.metrics.RecordDelivery(ctx, outcome)
	return delivery
}

// enqueue creates the outbox entry unless one is already pending for the
// order. queued is false when an existing entry was found.
func (s *PurchaseService) enqueue(ctx context.Context, orderID uuid.UUID, payload conversion.EventPayload, reason string, now time.Time) (*uuid.UUID, bool, error) {
	existing, err := s.outboxRepo.FindPendingByOrder(ctx, orderID, conversion.EventNamePurchase)
	switch {
	case err == nil:
		return &existing.ID, false, nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, false, err
	}

	entry, err := conversion.NewOutboxEntry(orderID, payload, reason, now, s.policy)
	if err != nil {
		return nil, false, err
	}
	if err := s.outboxRepo.Create(ctx, entry); err != nil {
		// a concurrent send queued it first
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &entry.ID, true, nil
}
