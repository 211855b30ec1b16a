package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"playergate/internal/metrics"
	"playergate/pkg/logging/logging"
)

// Logging wraps a Store with debug logging and lookup metrics.
type Logging struct {
	inner   Store
	backend string
}

// NewLogging returns a store that logs and records metrics under backend.
func NewLogging(inner Store, backend string) Store {
	return &Logging{inner: inner, backend: backend}
}

func (c *Logging) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	metrics.RecordCacheLookup(c.backend, result)

	fields := c.fields(key, latencyMs)
	fields = append(fields, zap.String("cache_result", result))

	logger := logging.L(ctx)
	if err != nil {
		logger.Warn("cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_get", fields...)
	}

	return value, ok, err
}

func (c *Logging) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := c.fields(key, latencyMs)
	fields = append(fields,
		zap.Duration("ttl", ttl),
		zap.Int("bytes", len(value)),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Warn("cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_set", fields...)
	}

	return err
}

func (c *Logging) Delete(ctx context.Context, key string) error {
	err := c.inner.Delete(ctx, key)
	if err != nil {
		logging.L(ctx).Warn("cache_delete",
			zap.String("cache_backend", c.backend),
			zap.String("cache_key", key),
			zap.Error(err),
		)
	}
	return err
}

func (c *Logging) fields(key string, latencyMs float64) []zap.Field {
	return []zap.Field{
		zap.String("cache_backend", c.backend),
		zap.String("cache_key", key),
		zap.String("cache_kind", KindOf(key)),
		zap.Float64("latency_ms", latencyMs),
	}
}
