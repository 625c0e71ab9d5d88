package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/velaro/ordersync/internal/domain/conversion"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/integration"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SweepReport contains statistics about one outbox sweep
type SweepReport struct {
	Scanned     int       `json:"scanned"`
	Sent        int       `json:"sent"`
	Rescheduled int       `json:"rescheduled"`
	Exhausted   int       `json:"exhausted"`
	Errors      int       `json:"errors"`
	SweptAt     time.Time `json:"swept_at"`
}

// OutboxStats is the number of outbox entries per status
type OutboxStats struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// RetryScheduler redelivers conversion events whose direct send failed
type RetryScheduler struct {
	outboxRepo conversion.OutboxRepository
	orderRepo  fulfillment.OrderRepository
	resolver   *CredentialResolver
	gateway    integration.ConversionGateway
	policy     conversion.RetryPolicy
	limit      int
	claimFor   time.Duration
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
}

// NewRetryScheduler creates a new RetryScheduler
func NewRetryScheduler(
	outboxRepo conversion.OutboxRepository,
	orderRepo fulfillment.OrderRepository,
	resolver *CredentialResolver,
	gateway integration.ConversionGateway,
	policy conversion.RetryPolicy,
	limit int,
	logger *zap.Logger,
) *RetryScheduler {
	if limit <= 0 {
		limit = conversion.DefaultSweepLimit
	}
	return &RetryScheduler{
		outboxRepo: outboxRepo,
		orderRepo:  orderRepo,
		resolver:   resolver,
		gateway:    gateway,
		policy:     policy,
		limit:      limit,
		claimFor:   conversion.DefaultClaimTimeout,
		logger:     logger,
	}
}

// Limit is the most entries one sweep claims
func (s *RetryScheduler) Limit() int {
	return s.limit
}

// SetClaimTimeout sets how long swept entries stay claimed. It must outlast
// a whole sweep.
func (s *RetryScheduler) SetClaimTimeout(d time.Duration) {
	if d > 0 {
		s.claimFor = d
	}
}

// SetMetrics sets the sweep counters
func (s *RetryScheduler) SetMetrics(metrics *telemetry.SyncMetrics) {
	s.metrics = metrics
}

// Sweep redelivers up to one batch of due entries, oldest first. A failing
// entry is counted and the sweep goes on.
func (s *RetryScheduler) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "RetryScheduler", "Sweep")
	defer span.End()

	report := &SweepReport{SweptAt: now}

	entries, err := s.outboxRepo.ClaimDue(ctx, now, now.Add(s.claimFor), s.limit)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to claim due outbox entries", zap.Error(err))
		return nil, err
	}

	report.Scanned = len(entries)
	if report.Scanned == 0 {
		s.logger.Debug("No due outbox entries found")
		return report, nil
	}

	for _, entry := range entries {
		result := s.retryOne(ctx, entry, now)
		switch result {
		case telemetry.ResultSent:
			report.Sent++
		case telemetry.ResultRescheduled:
			report.Rescheduled++
		case telemetry.ResultExhausted:
			report.Exhausted++
		default:
			report.Errors++
		}
		s.metrics.RecordSweepEntry(ctx, result)
	}

	telemetry.SetAttributes(span,
		"sweep.scanned", report.Scanned,
		"sweep.sent", report.Sent,
		"sweep.exhausted", report.Exhausted,
	)
	s.logger.Info("Completed outbox sweep",
		zap.Int("scanned", report.Scanned),
		zap.Int("sent", report.Sent),
		zap.Int("rescheduled", report.Rescheduled),
		zap.Int("exhausted", report.Exhausted),
		zap.Int("errors", report.Errors),
	)
	return report, nil
}

// retryOne redelivers one entry and classifies what happened
func (s *RetryScheduler) retryOne(ctx context.Context, entry *conversion.OutboxEntry, now time.Time) (result string) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Panic while retrying outbox entry",
				zap.String("entry_id", entry.ID.String()),
				zap.Any("panic", p),
			)
			result = telemetry.ResultError
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, "outbox.retry",
		telemetry.WithAttribute(telemetry.SpanAttrOutboxEntryID, entry.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, entry.OrderID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAttempts, entry.Attempts),
	)
	defer span.End()

	delivery, err := s.redeliver(ctx, entry)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to resolve credentials for outbox entry",
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err),
		)
		return telemetry.ResultError
	}

	if delivery.Succeeded() {
		if err := entry.MarkSent(now); err != nil {
			return s.updateFailed(entry, err)
		}
		if err := s.outboxRepo.Update(ctx, entry); err != nil {
			return s.updateFailed(entry, err)
		}
		s.stampOrder(ctx, entry, now)
		s.logger.Info("Outbox entry delivered",
			zap.String("entry_id", entry.ID.String()),
			zap.String("order_id", entry.OrderID.String()),
			zap.Int("attempts", entry.Attempts),
		)
		return telemetry.ResultSent
	}

	telemetry.MarkFailed(span, delivery.Reason)
	if err := entry.MarkFailed(delivery.Reason, now, s.policy); err != nil {
		return s.updateFailed(entry, err)
	}
	if err := s.outboxRepo.Update(ctx, entry); err != nil {
		return s.updateFailed(entry, err)
	}

	if entry.Status == conversion.OutboxStatusFailed {
		s.logger.Warn("Outbox entry exhausted its attempts",
			zap.String("entry_id", entry.ID.String()),
			zap.String("order_id", entry.OrderID.String()),
			zap.Int("attempts", entry.Attempts),
			zap.String("last_error", entry.LastError),
		)
		return telemetry.ResultExhausted
	}
	s.logger.Info("Outbox entry rescheduled",
		zap.String("entry_id", entry.ID.String()),
		zap.Int("attempts", entry.Attempts),
		zap.Timep("next_retry_at", entry.NextRetryAt),
	)
	return telemetry.ResultRescheduled
}

// redeliver re-resolves the access token through the stored reference and
// sends the stored payload. Missing credentials count as a failed delivery.
func (s *RetryScheduler) redeliver(ctx context.Context, entry *conversion.OutboxEntry) (integration.DeliveryResult, error) {
	creds, ok, err := s.resolver.Resolve(ctx, entry.Payload.Credentials)
	if err != nil {
		return integration.DeliveryResult{}, err
	}

	var delivery integration.DeliveryResult
	if !ok {
		delivery = integration.DeliveryFailed(0, fmt.Errorf("%w: %s", integration.ErrConversionNotConfigured, ReasonCredentialsMissing))
	} else {
		delivery = s.gateway.Send(ctx, entry.Payload, creds.Pixel.AccessToken)
	}

	outcome := telemetry.OutcomeSucceeded
	if !delivery.Succeeded() {
		outcome = telemetry.OutcomeFailed
	}
	s.metrics.RecordDelivery(ctx, outcome)
	return delivery, nil
}

// stampOrder marks the order's Purchase as sent. The entry is already sent,
// so a failure here is only logged.
func (s *RetryScheduler) stampOrder(ctx context.Context, entry *conversion.OutboxEntry, now time.Time) {
	order, err := s.orderRepo.FindByID(ctx, entry.OrderID)
	if err == nil {
		order.MarkPurchaseSent(entry.Payload.EventID(), now)
		err = s.orderRepo.UpdateMetaPurchase(ctx, order)
	}
	if err != nil {
		s.logger.Error("Failed to mark order purchase as sent",
			zap.String("entry_id", entry.ID.String()),
			zap.String("order_id", entry.OrderID.String()),
			zap.Error(err),
		)
	}
}

func (s *RetryScheduler) updateFailed(entry *conversion.OutboxEntry, err error) string {
	level := s.logger.Error
	// another sweep already finished this entry
	if errors.Is(err, shared.ErrConcurrencyConflict) || errors.Is(err, conversion.ErrEntryNotPending) {
		level = s.logger.Warn
	}
	level("Failed to update outbox entry",
		zap.String("entry_id", entry.ID.String()),
		zap.Error(err),
	)
	return telemetry.ResultError
}

// Stats returns the number of outbox entries per status
func (s *RetryScheduler) Stats(ctx context.Context) (*OutboxStats, error) {
	counts, err := s.outboxRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &OutboxStats{
		Pending: counts[conversion.OutboxStatusPending],
		Sent:    counts[conversion.OutboxStatusSent],
		Failed:  counts[conversion.OutboxStatusFailed],
	}, nil
}
