package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/virtuallearning/platform/internal/api/apierr"
)

// RateLimitConfig bounds how fast a single client IP may hit the
// credential endpoints.
type RateLimitConfig struct {
	RPS       float64
	Burst     int
	ExpiresIn time.Duration
}

// RateLimit throttles per client IP using an in-memory token bucket.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.ExpiresIn <= 0 {
		cfg.ExpiresIn = 3 * time.Minute
	}

	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.RPS),
		Burst:     cfg.Burst,
		ExpiresIn: cfg.ExpiresIn,
	})

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return &apierr.Error{Status: http.StatusForbidden, Code: apierr.CodeForbidden, Message: "unable to identify client", Cause: err}
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return &apierr.Error{Status: http.StatusTooManyRequests, Code: apierr.CodeTooManyAttempts, Message: "rate limit exceeded", Cause: err}
		},
	})
}
