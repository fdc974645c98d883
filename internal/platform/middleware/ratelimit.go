package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitConfig sets the allowance of each client on one path.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// ExpiresIn drops idle clients from the store. Zero uses echo's default.
	ExpiresIn time.Duration
}

// DefaultLoginRateLimit allows a short burst of login attempts, then one
// per second.
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         10,
		ExpiresIn:         10 * time.Minute,
	}
}

// retryAfter is the whole number of seconds until one more request fits.
func (cfg RateLimitConfig) retryAfter() int {
	if cfg.RequestsPerSecond <= 0 {
		return 1
	}
	return int(math.Ceil(1 / cfg.RequestsPerSecond))
}

// RateLimit throttles requests per client IP and path on top of echo's
// memory limiter store. The sandbox puts it on the login endpoints to slow
// down password guessing.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.RequestsPerSecond),
		Burst:     cfg.BurstSize,
		ExpiresIn: cfg.ExpiresIn,
	})
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		BeforeFunc: func(c echo.Context) {
			c.Response().Header().Set("X-RateLimit-Limit", limit)
		},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP() + " " + c.Request().URL.Path, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Không xác định được địa chỉ yêu cầu")
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			h := c.Response().Header()
			h.Set("Retry-After", strconv.Itoa(cfg.retryAfter()))
			h.Set("X-RateLimit-Remaining", "0")
			return echo.NewHTTPError(http.StatusTooManyRequests, "Quá nhiều yêu cầu, vui lòng thử lại sau")
		},
	})
}
