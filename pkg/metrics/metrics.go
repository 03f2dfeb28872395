package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by surface (manager|open) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"surface", "result"},
	)

	// SessionsIssued counts sessions created by login. Live sessions across replicas are
	// issued minus revoked minus purged.
	SessionsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cms_sessions_issued_total",
			Help: "Total number of sessions issued",
		},
	)

	// TokenRefreshes counts successful refreshes, labelled by whether the refresh token rotated.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_token_refresh_total",
			Help: "Total number of token refreshes",
		},
		[]string{"rotated"},
	)

	// SessionsRevoked counts explicit revocations.
	SessionsRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cms_sessions_revoked_total",
			Help: "Total number of revoked sessions",
		},
	)

	// SessionsPurged counts expired rows removed by background cleanup.
	SessionsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cms_sessions_purged_total",
			Help: "Total number of expired session rows deleted",
		},
	)

	// SessionCacheErrors counts allowlist failures by operation (put|has|delete).
	SessionCacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_session_cache_errors_total",
			Help: "Total number of session cache failures",
		},
		[]string{"op"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cms_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
