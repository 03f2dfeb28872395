package checks

import (
	"context"
	"time"

	"github.com/charlesng35/cmsauth/internal/monitoring"
)

// Pinger is the part of a cache store a check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache returns a check for the session allowlist backend. driver names the backend in details.
func Cache(store Pinger, driver string, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.CheckResult {
		start := time.Now()
		if store == nil {
			return monitoring.CheckResult{Status: monitoring.StatusDown, Details: "cache not configured"}
		}

		checkCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()

		result := monitoring.ResultFromError("cache", store.Ping(checkCtx), time.Since(start))
		if result.Details == "" {
			result.Details = driver
		}
		return result
	})
}
