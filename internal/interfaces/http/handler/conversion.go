package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	conversionapp "github.com/velaro/ordersync/internal/application/conversion"
)

// PurchaseSender sends the Purchase conversion event of one order
type PurchaseSender interface {
	SendPurchase(ctx context.Context, orderID uuid.UUID) (*conversionapp.PurchaseResult, error)
}

// OutboxSweeper drains the conversion outbox
type OutboxSweeper interface {
	Sweep(ctx context.Context, now time.Time) (*conversionapp.SweepReport, error)
	Stats(ctx context.Context) (*conversionapp.OutboxStats, error)
}

// ConversionHandler handles conversion delivery and outbox endpoints
type ConversionHandler struct {
	BaseHandler
	purchases PurchaseSender
	outbox    OutboxSweeper
	now       func() time.Time
}

// NewConversionHandler creates a new ConversionHandler
func NewConversionHandler(purchases PurchaseSender, outbox OutboxSweeper) *ConversionHandler {
	return &ConversionHandler{
		purchases: purchases,
		outbox:    outbox,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for manual sweeps
func (h *ConversionHandler) SetClock(now func() time.Time) {
	h.now = now
}

// OutboxStatsResponse represents outbox statistics response
type OutboxStatsResponse struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}

// SendPurchase sends the Purchase event of a synced order, queueing it for
// retry when the direct send fails
func (h *ConversionHandler) SendPurchase(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	result, err := h.purchases.SendPurchase(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Sweep redelivers the due outbox entries
func (h *ConversionHandler) Sweep(c *gin.Context) {
	report, err := h.outbox.Sweep(c.Request.Context(), h.now().UTC())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// GetStats returns the number of outbox entries per status
func (h *ConversionHandler) GetStats(c *gin.Context) {
	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, OutboxStatsResponse{
		Pending: stats.Pending,
		Sent:    stats.Sent,
		Failed:  stats.Failed,
		Total:   stats.Pending + stats.Sent + stats.Failed,
	})
}
