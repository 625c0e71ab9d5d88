package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/integration"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SyncOutcome reports what the WMS sync of an operation did. A failed sync
// is an outcome, not an error.
type SyncOutcome struct {
	Attempted           bool   `json:"attempted"`
	Succeeded           bool   `json:"succeeded"`
	HelpshipOrderID     string `json:"helpship_order_id,omitempty"`
	Reason              string `json:"reason,omitempty"`
	UpstreamDataMissing bool   `json:"upstream_data_missing,omitempty"`
}

func outcomeFrom(result integration.SyncResult) SyncOutcome {
	return SyncOutcome{
		Attempted:           true,
		Succeeded:           result.Succeeded(),
		HelpshipOrderID:     result.HelpshipOrderID,
		Reason:              result.Reason,
		UpstreamDataMissing: result.IsUpstreamDataMissing(),
	}
}

// OrderResult is the order after an operation together with its sync outcome
type OrderResult struct {
	Order *fulfillment.Order `json:"order"`
	Sync  SyncOutcome        `json:"sync"`
}

// OrderService runs the order lifecycle operations
type OrderService struct {
	orderRepo    fulfillment.OrderRepository
	syncer       Syncer
	syncLease    shared.IdempotencyStore
	syncLeaseTTL time.Duration
	eventBus     shared.EventBus
	now          func() time.Time
	logger       *zap.Logger
}

const (
	// DefaultSyncLeaseTTL bounds how long a crashed instance can block the
	// WMS sync of one order
	DefaultSyncLeaseTTL = 2 * time.Minute

	syncLeasePrefix = "wms-sync:"
)

// NewOrderService creates a new OrderService. syncLease serializes the
// operations that may create the order in the WMS, one holder per order.
func NewOrderService(
	orderRepo fulfillment.OrderRepository,
	syncer Syncer,
	syncLease shared.IdempotencyStore,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		syncer:       syncer,
		syncLease:    syncLease,
		syncLeaseTTL: DefaultSyncLeaseTTL,
		eventBus:     eventBus,
		now:          time.Now,
		logger:       logger,
	}
}

// SetEventBus sets the event bus for publishing events
func (s *OrderService) SetEventBus(eventBus shared.EventBus) {
	s.eventBus = eventBus
}

// SetClock replaces the time source
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

// SetSyncLeaseTTL sets how long a sync lease is held at most. It must
// outlast the WMS request timeout.
func (s *OrderService) SetSyncLeaseTTL(ttl time.Duration) {
	if ttl > 0 {
		s.syncLeaseTTL = ttl
	}
}

// Get returns an order by id
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*fulfillment.Order, error) {
	return s.orderRepo.FindByID(ctx, id)
}

// Confirm confirms a pending order, applying the edits first. An order the
// WMS already holds is confirmed without another create call.
func (s *OrderService) Confirm(ctx context.Context, id uuid.UUID, fields fulfillment.UpdateFields) (*OrderResult, error) {
	ctx, span := s.startSpan(ctx, "Confirm", id)
	defer span.End()

	release, err := s.claimSync(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := order.CheckConfirm(); err != nil {
		return nil, err
	}

	expected := order.Status
	now := s.now()
	if err := order.ApplyUpdates(fields, now); err != nil {
		return nil, err
	}

	if order.IsSynced() {
		if err := order.Confirm(now); err != nil {
			return nil, err
		}
		return s.save(ctx, span, order, expected, SyncOutcome{})
	}

	outcome, err := s.syncTo(ctx, order, fulfillment.OrderStatusConfirmed)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, span, order, expected, outcome)
}

// Cancel cancels the order
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID) (*OrderResult, error) {
	return s.transition(ctx, "Cancel", id, func(o *fulfillment.Order, now time.Time) error {
		return o.Cancel(now)
	})
}

// Uncancel restores a cancelled order to the status it was cancelled from
func (s *OrderService) Uncancel(ctx context.Context, id uuid.UUID) (*OrderResult, error) {
	return s.transition(ctx, "Uncancel", id, func(o *fulfillment.Order, now time.Time) error {
		return o.Uncancel(now)
	})
}

// Hold parks the order with a note
func (s *OrderService) Hold(ctx context.Context, id uuid.UUID, note string) (*OrderResult, error) {
	return s.transition(ctx, "Hold", id, func(o *fulfillment.Order, now time.Time) error {
		return o.Hold(note, now)
	})
}

// Unhold restores a held order to the status it was held from, without syncing
func (s *OrderService) Unhold(ctx context.Context, id uuid.UUID) (*OrderResult, error) {
	return s.transition(ctx, "Unhold", id, func(o *fulfillment.Order, now time.Time) error {
		return o.Unhold(now)
	})
}

// Resync retries the WMS sync of an order in sync_error
func (s *OrderService) Resync(ctx context.Context, id uuid.UUID) (*OrderResult, error) {
	return s.syncOperation(ctx, "Resync", id, (*fulfillment.Order).CheckResync)
}

// Finalize forces a queue order to the WMS
func (s *OrderService) Finalize(ctx context.Context, id uuid.UUID) (*OrderResult, error) {
	return s.syncOperation(ctx, "Finalize", id, (*fulfillment.Order).CheckFinalize)
}

// Promote sends a testing order to the WMS
func (s *OrderService) Promote(ctx context.Context, id uuid.UUID) (*OrderResult, error) {
	return s.syncOperation(ctx, "Promote", id, (*fulfillment.Order).CheckPromote)
}

// transition runs a status change that never talks to the WMS
func (s *OrderService) transition(ctx context.Context, method string, id uuid.UUID, apply func(*fulfillment.Order, time.Time) error) (*OrderResult, error) {
	ctx, span := s.startSpan(ctx, method, id)
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := order.Status
	if err := apply(order, s.now()); err != nil {
		return nil, err
	}
	return s.save(ctx, span, order, expected, SyncOutcome{})
}

// syncOperation checks the precondition and syncs the order towards pending
func (s *OrderService) syncOperation(ctx context.Context, method string, id uuid.UUID, check func(*fulfillment.Order) error) (*OrderResult, error) {
	ctx, span := s.startSpan(ctx, method, id)
	defer span.End()

	release, err := s.claimSync(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := check(order); err != nil {
		return nil, err
	}

	expected := order.Status
	outcome, err := s.syncTo(ctx, order, fulfillment.OrderStatusPending)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, span, order, expected, outcome)
}

// claimSync takes the per-order sync lease before the order is loaded, so
// the holder always reads what the previous holder saved. A busy lease is a
// concurrency conflict and a store failure refuses the sync.
func (s *OrderService) claimSync(ctx context.Context, id uuid.UUID) (func(), error) {
	key := syncLeasePrefix + id.String()
	acquired, err := s.syncLease.MarkProcessed(ctx, key, s.syncLeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lease for order %s: %w", id, err)
	}
	if !acquired {
		s.logger.Debug("Order sync already in progress", zap.String("order_id", id.String()))
		return nil, shared.ErrConcurrencyConflict
	}
	return func() {
		if err := s.syncLease.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn("Failed to release sync lease",
				zap.String("order_id", id.String()),
				zap.Error(err),
			)
		}
	}, nil
}

// syncTo runs at most one WMS sync and applies its result to the order
func (s *OrderService) syncTo(ctx context.Context, order *fulfillment.Order, target fulfillment.OrderStatus) (SyncOutcome, error) {
	result := s.syncer.Sync(ctx, order)
	now := s.now()
	if result.Succeeded() {
		if err := order.MarkSynced(result.HelpshipOrderID, target, now); err != nil {
			return SyncOutcome{}, err
		}
	} else if err := order.MarkSyncFailed(result.Reason, now); err != nil {
		return SyncOutcome{}, err
	}
	return outcomeFrom(result), nil
}

// save writes the order guarded by its prior status and publishes the
// events it raised
func (s *OrderService) save(ctx context.Context, span trace.Span, order *fulfillment.Order, expected fulfillment.OrderStatus, outcome SyncOutcome) (*OrderResult, error) {
	if err := s.orderRepo.UpdateStatus(ctx, order, expected); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) && outcome.Succeeded {
			s.keepHelpshipID(ctx, order)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrOrderStatus, order.Status.String())
	s.logger.Info("Order updated",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("from_status", expected.String()),
		zap.String("status", order.Status.String()),
		zap.Bool("sync_attempted", outcome.Attempted),
	)

	s.publish(ctx, order)
	return &OrderResult{Order: order, Sync: outcome}, nil
}

// keepHelpshipID stores the WMS id of an order whose status write lost a
// race, so the next sync does not create the order twice
func (s *OrderService) keepHelpshipID(ctx context.Context, order *fulfillment.Order) {
	if !order.IsSynced() || order.SyncedAt == nil {
		return
	}
	if err := s.orderRepo.RecordHelpshipID(ctx, order.ID, *order.HelpshipOrderID, *order.SyncedAt); err != nil {
		s.logger.Error("Failed to record WMS id after status conflict",
			zap.String("order_id", order.ID.String()),
			zap.String("helpship_order_id", *order.HelpshipOrderID),
			zap.Error(err),
		)
	}
}

func (s *OrderService) publish(ctx context.Context, order *fulfillment.Order) {
	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	if s.eventBus == nil || len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish order events",
			zap.String("order_id", order.ID.String()),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

func (s *OrderService) startSpan(ctx context.Context, method string, id uuid.UUID) (context.Context, trace.Span) {
	return telemetry.StartServiceSpan(ctx, "OrderService", method,
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, id.String()),
	)
}
