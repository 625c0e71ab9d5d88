package cache

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/config"
)

// NewIdempotencyStore returns a Redis store when Redis is configured and
// reachable, and an in-memory store otherwise. An unreachable Redis is only
// tolerated outside production.
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, production bool, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := NewRedisIdempotencyStore(ctx, cfg)
	switch {
	case err == nil:
		logger.Info("Using Redis idempotency store", zap.String("addr", cfg.Addr()))
		return store, nil
	case errors.Is(err, ErrRedisNotConfigured):
		logger.Warn("Redis not configured, leases only cover this instance")
		return NewInMemoryIdempotencyStore(), nil
	case production:
		return nil, err
	}

	logger.Warn("Redis unavailable, falling back to in-memory idempotency store", zap.Error(err))
	return NewInMemoryIdempotencyStore(), nil
}
