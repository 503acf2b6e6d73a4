package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/cache"
	"github.com/bengobox/oauth-provider/internal/metrics"
)

// Counter increments a key that lives for one window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements Counter with INCR and EXPIRE NX in one MULTI/EXEC
// round trip, so a counted key always carries a TTL.
type RedisCounter struct {
	Client *redis.Client
}

// Incr implements Counter.
func (c RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter applies fixed-window request limits.
type RateLimiter struct {
	counter   Counter
	namespace string
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewRateLimiter returns a limiter storing its windows under namespace.
func NewRateLimiter(counter Counter, namespace string, m *metrics.Metrics, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		counter:   counter,
		namespace: namespace,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Limit allows limit requests per window for each key returned by keyFn.
// Counter failures let the request through.
func (l *RateLimiter) Limit(name string, limit int, window time.Duration, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket := l.now().UnixNano() / int64(window)
			key := cache.Key(l.namespace, "ratelimit", name, keyFn(r), strconv.FormatInt(bucket, 10))

			n, err := l.counter.Incr(r.Context(), key, window)
			if err != nil {
				l.logger.Warn("rate limiter unavailable", zap.String("limit", name), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if n > int64(limit) {
				l.metrics.RateLimited()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":             "rate-limited",
					"error_description": "Too many requests, try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
