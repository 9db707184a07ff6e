package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/arpitbanna/url-shortener/internal/counter"
	"github.com/arpitbanna/url-shortener/internal/metrics"
)

// PrometheusMiddleware records the request counter and latency histogram
// for every route.
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		endpoint := c.Route().Path
		metrics.RequestCount.WithLabelValues(
			c.Method(),
			endpoint,
			metrics.HTTPStatusLabel(c.Response().StatusCode()),
		).Inc()
		metrics.RequestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		return err
	}
}

// RateLimiter caps requests per user and per IP using 60-second windowed
// counters. The window resets itself through TTL expiry.
type RateLimiter struct {
	store counter.Store
	limit int
}

func NewRateLimiter(store counter.Store, limit int) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	return &RateLimiter{store: store, limit: limit}
}

func (r *RateLimiter) Allow(c *fiber.Ctx, userID string) (bool, error) {
	userCount, err := r.store.Increment(c.Context(), "rate:"+userID, time.Minute)
	if err != nil {
		return false, err
	}
	ipCount, err := r.store.Increment(c.Context(), "rate_ip:"+clientIP(c), time.Minute)
	if err != nil {
		return false, err
	}
	return userCount <= int64(r.limit) && ipCount <= int64(r.limit), nil
}

// clientIP prefers the first X-Forwarded-For entry over the socket peer.
func clientIP(c *fiber.Ctx) string {
	if ips := c.IPs(); len(ips) > 0 {
		return ips[0]
	}
	return c.IP()
}
