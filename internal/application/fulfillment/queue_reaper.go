package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/velaro/ordersync/internal/domain/fulfillment"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/config"
	"github.com/velaro/ordersync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultReapBatchSize is the number of expired queue orders handled per reap
const DefaultReapBatchSize = 10

// ReapLeaseKey is the lease that keeps concurrent instances from reaping together
const ReapLeaseKey = "queue-reaper"

// Finalizer forces a queue order to the WMS
type Finalizer interface {
	Finalize(ctx context.Context, id uuid.UUID) (*OrderResult, error)
}

// ReapReport contains statistics about one reap
type ReapReport struct {
	Scanned    int       `json:"scanned"`
	Finalized  int       `json:"finalized"`
	SyncFailed int       `json:"sync_failed"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	ReapedAt   time.Time `json:"reaped_at"`
}

// QueueReaper finalizes queue orders whose confirmation window has passed
type QueueReaper struct {
	orderRepo fulfillment.OrderRepository
	finalizer Finalizer
	lease     shared.IdempotencyStore
	cfg       config.ReaperConfig
	metrics   *telemetry.SyncMetrics
	now       func() time.Time
	logger    *zap.Logger

	wg sync.WaitGroup
}

// NewQueueReaper creates a new QueueReaper
func NewQueueReaper(
	orderRepo fulfillment.OrderRepository,
	finalizer Finalizer,
	lease shared.IdempotencyStore,
	cfg config.ReaperConfig,
	logger *zap.Logger,
) *QueueReaper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultReapBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &QueueReaper{
		orderRepo: orderRepo,
		finalizer: finalizer,
		lease:     lease,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// SetMetrics sets the reap counters
func (r *QueueReaper) SetMetrics(metrics *telemetry.SyncMetrics) {
	r.metrics = metrics
}

// SetClock replaces the time source
func (r *QueueReaper) SetClock(now func() time.Time) {
	r.now = now
}

// Reap finalizes up to one batch of expired queue orders, oldest first.
// A failing order is counted and the batch goes on.
func (r *QueueReaper) Reap(ctx context.Context, now time.Time) (*ReapReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "QueueReaper", "Reap")
	defer span.End()

	report := &ReapReport{ReapedAt: now}

	orders, err := r.orderRepo.FindExpiredQueue(ctx, now, r.cfg.BatchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.Error("Failed to find expired queue orders", zap.Error(err))
		return nil, err
	}

	report.Scanned = len(orders)
	if report.Scanned == 0 {
		r.logger.Debug("No expired queue orders found")
		return report, nil
	}

	for _, order := range orders {
		result := r.reapOne(ctx, order)
		switch result {
		case telemetry.ResultFinalized:
			report.Finalized++
		case telemetry.ResultSyncFailed:
			report.SyncFailed++
		case telemetry.ResultSkipped:
			report.Skipped++
		default:
			report.Errors++
		}
		r.metrics.RecordReapOrder(ctx, result)
	}

	telemetry.SetAttributes(span,
		"reap.scanned", report.Scanned,
		"reap.finalized", report.Finalized,
		"reap.sync_failed", report.SyncFailed,
	)
	r.logger.Info("Completed queue reap",
		zap.Int("scanned", report.Scanned),
		zap.Int("finalized", report.Finalized),
		zap.Int("sync_failed", report.SyncFailed),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
	)
	return report, nil
}

// reapOne finalizes one order and classifies what happened
func (r *QueueReaper) reapOne(ctx context.Context, order *fulfillment.Order) (result string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic while finalizing expired queue order",
				zap.String("order_id", order.ID.String()),
				zap.Any("panic", p),
			)
			result = telemetry.ResultError
		}
	}()

	res, err := r.finalizer.Finalize(ctx, order.ID)
	if err != nil {
		// another request moved the order first
		if errors.Is(err, shared.ErrConcurrencyConflict) || errors.Is(err, shared.ErrInvalidState) {
			r.logger.Debug("Skipped expired queue order",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			return telemetry.ResultSkipped
		}
		r.logger.Error("Failed to finalize expired queue order",
			zap.String("order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		return telemetry.ResultError
	}
	if !res.Sync.Succeeded {
		return telemetry.ResultSyncFailed
	}
	return telemetry.ResultFinalized
}

// TryReap starts a background reap unless another one ran within the
// minimum interval on any instance. It reports whether a reap was started.
func (r *QueueReaper) TryReap(ctx context.Context) bool {
	ttl := r.cfg.MinInterval
	if ttl <= 0 {
		ttl = time.Minute
	}
	acquired, err := r.lease.MarkProcessed(ctx, ReapLeaseKey, ttl)
	if err != nil {
		r.logger.Warn("Failed to acquire reap lease", zap.Error(err))
		return false
	}
	if !acquired {
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// the request that triggered the reap may already be gone
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
		defer cancel()
		if _, err := r.Reap(bg, r.now()); err != nil {
			r.logger.Warn("Background queue reap failed", zap.Error(fmt.Errorf("reap: %w", err)))
		}
	}()
	return true
}

// Wait blocks until background reaps started by TryReap have finished
func (r *QueueReaper) Wait() {
	r.wg.Wait()
}
