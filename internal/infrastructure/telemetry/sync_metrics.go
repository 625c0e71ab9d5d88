package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation name of the service's own instruments
const MeterName = "github.com/velaro/ordersync"

// Outcome and result label values
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"

	ResultSent        = "sent"
	ResultRescheduled = "rescheduled"
	ResultExhausted   = "exhausted"
	ResultFinalized   = "finalized"
	ResultSyncFailed  = "sync_failed"
	ResultSkipped     = "skipped"
	ResultError       = "error"
)

// SyncMetrics holds the counters of the sync pipelines. A nil *SyncMetrics
// records nothing, so components work without telemetry.
type SyncMetrics struct {
	wmsSync      *Counter
	wmsDuration  *Histogram
	capiDelivery *Counter
	outboxSweep  *Counter
	queueReap    *Counter
}

// NewSyncMetrics creates the instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	wmsSync, err1 := NewCounter(meter, "wms_sync_total", "WMS order create attempts by outcome", "{attempt}")
	wmsDuration, err2 := NewHistogram(meter, HistogramOpts{
		Name:        "wms_sync_duration_seconds",
		Description: "Duration of WMS order create calls",
		Unit:        "s",
		Boundaries:  ExternalCallBuckets,
	})
	capi, err3 := NewCounter(meter, "capi_delivery_total", "Conversions API deliveries by outcome", "{delivery}")
	sweep, err4 := NewCounter(meter, "outbox_sweep_entries_total", "Outbox entries handled by the retry sweep by result", "{entry}")
	reap, err5 := NewCounter(meter, "queue_reap_orders_total", "Expired queue orders handled by the reaper by result", "{order}")
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return nil, err
	}
	return &SyncMetrics{
		wmsSync:      wmsSync,
		wmsDuration:  wmsDuration,
		capiDelivery: capi,
		outboxSweep:  sweep,
		queueReap:    reap,
	}, nil
}

// RecordWMSSync counts one WMS create call and its duration
func (m *SyncMetrics) RecordWMSSync(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.wmsSync.Inc(ctx, AttrOutcome.String(outcome))
	m.wmsDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// RecordDelivery counts one Conversions API call
func (m *SyncMetrics) RecordDelivery(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.capiDelivery.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordSweepEntry counts one outbox entry handled by a sweep
func (m *SyncMetrics) RecordSweepEntry(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.outboxSweep.Inc(ctx, AttrResult.String(result))
}

// RecordReapOrder counts one order handled by the queue reaper
func (m *SyncMetrics) RecordReapOrder(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.queueReap.Inc(ctx, AttrResult.String(result))
}
