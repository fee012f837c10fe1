package admission

import (
	"context"
	"time"

	"github.com/zohobridge/mcp-gateway/pkg/errors"
	"github.com/zohobridge/mcp-gateway/pkg/kv"
	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/telemetry"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimiter implements spec §4.8's rule 3: a fixed-window counter per
// principal, backed by pkg/kv so the bucket is shared across replicas
// (spec §9: rate-limit counters live in the external store, not process
// memory). A KV failure fails open — admitting the request rather than
// rejecting traffic because the coordination store is briefly unreachable.
type RateLimiter struct {
	store   kv.Store
	count   int
	window  time.Duration
	metrics *telemetry.Metrics
}

// NewRateLimiter builds a RateLimiter allowing count requests per window,
// per principal.
func NewRateLimiter(store kv.Store, count int, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, count: count, window: window}
}

// SetMetrics attaches m so Allow records rejection counts. Optional: a
// RateLimiter with no metrics attached skips recording.
func (r *RateLimiter) SetMetrics(m *telemetry.Metrics) {
	r.metrics = m
}

// Allow increments principal's counter and returns a rate-limited error
// with a retry-after hint (spec §4.8) once the window's count is
// exhausted.
func (r *RateLimiter) Allow(ctx context.Context, principal string) error {
	current, err := r.store.IncrementWithTTL(ctx, rateLimitKeyPrefix+principal, r.window)
	if err != nil {
		logger.Warnw("rate limiter store unavailable, admitting request", "principal", principal, "error", err)
		return nil
	}
	if current > int64(r.count) {
		if r.metrics != nil {
			r.metrics.RateLimitRejections.WithLabelValues(principal).Inc()
		}
		// The Store facade has no TTL-remaining query, so the hint is the
		// full window rather than the exact remainder spec §4.8 describes;
		// callers should treat it as an upper bound, not a promise.
		return errors.NewRateLimited(int(r.window.Seconds()))
	}
	return nil
}
