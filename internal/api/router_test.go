package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/cmsauth/internal/app"
	"github.com/charlesng35/cmsauth/internal/auth"
	"github.com/charlesng35/cmsauth/internal/cache"
	"github.com/charlesng35/cmsauth/internal/database/testutil"
)

func newTestSessions(t *testing.T) *auth.SessionService {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := auth.NewGormSessionStore(db, time.Second)
	require.NoError(t, err)
	sessionCache, err := auth.NewSessionCache(cache.NewMemoryStore())
	require.NoError(t, err)
	verifier, err := auth.NewCredentialVerifier(db, nil)
	require.NoError(t, err)

	svc, err := auth.NewSessionService(auth.SessionDeps{
		Store:    store,
		Cache:    sessionCache,
		Codec:    auth.NewTokenCodec(auth.TokenCodecConfig{Secret: "router-secret"}),
		Verifier: verifier,
	}, auth.SessionConfig{})
	require.NoError(t, err)
	return svc
}

func testConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{Timezone: "UTC"},
		Auth: app.AuthConfig{
			LoginRate: app.RateSettings{Limit: 10, Window: time.Minute},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{Sessions: newTestSessions(t)})
	require.Error(t, err)

	_, err = NewRouter(Dependencies{Config: testConfig()})
	require.Error(t, err)
}

func TestNewRouterRejectsUnknownTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Timezone = "Mars/Olympus_Mons"

	_, err := NewRouter(Dependencies{Config: cfg, Sessions: newTestSessions(t)})
	require.Error(t, err)
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r, err := NewRouter(Dependencies{Config: testConfig(), Sessions: newTestSessions(t)})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics").Code)

	for _, surface := range []string{"manager", "open"} {
		require.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/auth/"+surface+"/me").Code)
		require.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPatch, "/auth/"+surface+"/token").Code)
		require.Equal(t, http.StatusUnauthorized, serve(r, http.MethodDelete, "/auth/"+surface+"/token").Code)
	}

	require.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/auth/partner/me").Code)
}

func TestRouterMonitoringToggles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	cfg.Monitoring.Prometheus.Enabled = false
	cfg.Monitoring.Health.Enabled = false

	r, err := NewRouter(Dependencies{Config: cfg, Sessions: newTestSessions(t)})
	require.NoError(t, err)

	require.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/metrics").Code)
}

func TestRouterCustomMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	cfg.Monitoring.Prometheus.Endpoint = "/internal/metrics"

	r, err := NewRouter(Dependencies{Config: cfg, Sessions: newTestSessions(t)})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/internal/metrics").Code)
	require.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/metrics").Code)
}
