package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/stockify/contact-api/pkg/http"
)

// RateLimitConfig holds per-IP rate limiting configuration. This is the
// outer HTTP throttle; the per-identity limits live in the service layer.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultContactRateLimit returns the default per-IP limit for the
// contact endpoints (30 requests per minute).
func DefaultContactRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests from this address", time.Minute)
		}),
	)
}
