package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gatehouse-labs/gatehouse"
	"github.com/gatehouse-labs/gatehouse/metrics"
)

// Limiter counts hits against a fixed window. Implemented by cache.Store.
type Limiter interface {
	IncrRateLimit(ctx context.Context, bucket, subject string, window time.Duration) (int64, error)
}

// RateLimitConfig tunes one rate-limit bucket.
type RateLimitConfig struct {
	Bucket string
	Max    int64
	Window time.Duration
}

// RateLimit rejects clients that exceed Max requests per Window, keyed by
// client IP. Counter errors fail open: availability over strictness for a
// throttle, unlike token consumption.
func RateLimit(limiter Limiter, cfg RateLimitConfig, m *metrics.Metrics, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n, err := limiter.IncrRateLimit(r.Context(), cfg.Bucket, clientIP(r), cfg.Window)
			if err != nil {
				log.Warn("rate limit counter unavailable, allowing request",
					"bucket", cfg.Bucket, "error", err)
			} else if n > cfg.Max {
				m.IncRateLimited()
				writeError(w, gatehouse.E(gatehouse.CodeTooManyRequests, "Too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
