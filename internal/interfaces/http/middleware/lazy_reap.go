package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// QueueReaper starts a throttled background reap
type QueueReaper interface {
	TryReap(ctx context.Context) bool
}

// LazyReap triggers a queue reap after each handled request, so that expired
// queue orders are finalized even without a scheduler. The reaper throttles
// itself, so most requests only pay for one lease check.
func LazyReap(reaper QueueReaper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		reaper.TryReap(c.Request.Context())
	}
}
