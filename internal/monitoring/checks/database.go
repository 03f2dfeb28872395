package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/cmsauth/internal/database"
	"github.com/charlesng35/cmsauth/internal/monitoring"
)

const defaultCheckTimeout = 2 * time.Second

// Database returns a check that pings the session database.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.CheckResult {
		start := time.Now()
		if db == nil {
			return monitoring.CheckResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		checkCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()

		return monitoring.ResultFromError("database", database.Ping(checkCtx, db), time.Since(start))
	})
}

func chooseTimeout(provided time.Duration) time.Duration {
	if provided <= 0 {
		return defaultCheckTimeout
	}
	return provided
}
