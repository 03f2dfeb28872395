package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/cmsauth/internal/cache"
	appErrors "github.com/charlesng35/cmsauth/pkg/errors"
	"github.com/charlesng35/cmsauth/pkg/logger"
	"github.com/charlesng35/cmsauth/pkg/response"
)

// RateLimitConfig bounds requests per (client IP, route) within a fixed window.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// RateLimit counts requests in the shared cache store so limits hold across instances.
// A non-positive limit disables the middleware. Store failures let the request through.
func RateLimit(store cache.Store, cfg RateLimitConfig) gin.HandlerFunc {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		if store == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + "|" + routeOf(c)
		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limit store unavailable", zap.Error(err), zap.String("key", key))
			c.Next()
			return
		}
		if ttl < 0 {
			ttl = 0
		}

		remaining := int64(cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		resetSeconds := strconv.Itoa(int(ttl.Round(time.Second) / time.Second))

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", resetSeconds)

		if count > int64(cfg.Limit) {
			c.Header("Retry-After", resetSeconds)
			response.Error(c, appErrors.ErrRateLimit)
			return
		}

		c.Next()
	}
}

func routeOf(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}
