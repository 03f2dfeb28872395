package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/cmsauth/internal/cache"
	"github.com/charlesng35/cmsauth/internal/database/testutil"
	"github.com/charlesng35/cmsauth/internal/monitoring"
	"github.com/charlesng35/cmsauth/internal/monitoring/checks"
)

func TestHealthManagerEvaluate(t *testing.T) {
	manager := monitoring.NewHealthManager(
		monitoring.NewCheck("database", func(context.Context) monitoring.CheckResult {
			return monitoring.CheckResult{Status: monitoring.StatusUp}
		}),
		monitoring.NewCheck("cache", func(context.Context) monitoring.CheckResult {
			return monitoring.CheckResult{Status: monitoring.StatusDown, Details: "connection refused"}
		}),
	)

	report := manager.Evaluate(context.Background())
	require.False(t, report.Healthy)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "cache", report.Checks[1].Component)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	manager := monitoring.NewHealthManager(monitoring.NewCheck("broken", func(context.Context) monitoring.CheckResult {
		panic("boom")
	}))

	report := manager.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "boom", report.Checks[0].Details)
	require.Equal(t, "broken", report.Checks[0].Component)
}

func TestResultFromError(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, monitoring.ResultFromError("db", nil, time.Millisecond).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.ResultFromError("db", context.DeadlineExceeded, 0).Status)
	require.Equal(t, monitoring.StatusDown, monitoring.ResultFromError("db", errors.New("refused"), -1).Status)
}

func TestDependencyChecks(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	manager := monitoring.NewHealthManager(
		checks.Database(db, time.Second),
		checks.Cache(cache.NewMemoryStore(), "memory", time.Second),
	)
	report := manager.Evaluate(context.Background())
	require.True(t, report.Healthy)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Equal(t, "memory", report.Checks[1].Details)

	down := checks.Cache(nil, "redis", 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, down.Status)
}
