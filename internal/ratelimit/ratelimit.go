// Package ratelimit implements per-tenant fixed-window request admission
// backed by a shared atomic counter store. Fixed windows cost O(1) state
// per tenant-window and are trivial to reason about, at the price of up to
// a 2x burst straddling a window boundary.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docsearch-io/docsearch/pkg/config"
	"github.com/docsearch-io/docsearch/pkg/metrics"
)

const keyPrefix = "ratelimit:"

// CounterStore is the shared-counter contract. Increment must be atomic
// across processes; Expire arms the key's self-cleanup.
type CounterStore interface {
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Limiter admits or rejects requests per tenant and window.
type Limiter struct {
	store   CounterStore
	cfg     config.RateLimitConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Limiter. metrics may be nil.
func New(store CounterStore, cfg config.RateLimitConfig, m *metrics.Metrics) *Limiter {
	return &Limiter{
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "rate-limiter"),
		now:     time.Now,
	}
}

// Allow reports whether the tenant has remaining quota in the current
// window. When the counter store is unreachable it fails open: service
// availability is weighted above strict quota enforcement.
func (l *Limiter) Allow(ctx context.Context, tenantID string) bool {
	if !l.cfg.Enabled {
		return true
	}

	windowIndex := l.now().UnixMilli() / l.cfg.Window.Milliseconds()
	key := fmt.Sprintf("%s%s:%d", keyPrefix, tenantID, windowIndex)

	count, err := l.store.Increment(ctx, key)
	if err != nil {
		l.logger.Error("counter store unavailable, failing open",
			"tenant", tenantID,
			"error", err,
		)
		l.record("failopen")
		return true
	}

	// First hit in this window: arm the key's expiry so abandoned windows
	// clean themselves up.
	if count == 1 {
		if err := l.store.Expire(ctx, key, l.cfg.Window); err != nil {
			l.logger.Error("failed to set window expiry", "key", key, "error", err)
		}
	}

	allowed := count <= int64(l.cfg.Limit)
	if !allowed {
		l.logger.Warn("rate limit exceeded",
			"tenant", tenantID,
			"count", count,
			"limit", l.cfg.Limit,
		)
		l.record("rejected")
		return false
	}
	l.record("allowed")
	return true
}

func (l *Limiter) record(result string) {
	if l.metrics != nil {
		l.metrics.RateLimitDecisions.WithLabelValues(result).Inc()
	}
}
