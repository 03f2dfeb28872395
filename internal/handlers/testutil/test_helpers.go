package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauth/internal/api"
	"github.com/charlesng35/cmsauth/internal/app"
	"github.com/charlesng35/cmsauth/internal/auth"
	"github.com/charlesng35/cmsauth/internal/cache"
	sharedtestutil "github.com/charlesng35/cmsauth/internal/database/testutil"
	"github.com/charlesng35/cmsauth/internal/models"
	"github.com/charlesng35/cmsauth/internal/monitoring"
	"github.com/charlesng35/cmsauth/internal/monitoring/checks"
)

// T0 is the instant the fake clock starts at.
var T0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Env is a fully wired API backed by in-memory sqlite and an in-memory allowlist.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Sessions *auth.SessionService
	Clock    *auth.FakeClock
	Cache    *cache.MemoryStore
	Config   *app.Config
}

// APIResponse mirrors the response envelope with the payload left raw.
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// TokenPair is the token body returned by login and refresh.
type TokenPair struct {
	AccessToken    string `json:"access_token"`
	AccessExpired  string `json:"access_expired"`
	RefreshToken   string `json:"refresh_token"`
	RefreshExpired string `json:"refresh_expired"`
}

// NewEnv provisions a fresh environment: access 7d, refresh 30d, secret "test-secret", UTC
// rendering and the clock frozen at T0. opts may adjust the configuration before wiring.
func NewEnv(t *testing.T, opts ...func(*app.Config)) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := &app.Config{
		Server: app.ServerConfig{Timezone: "UTC"},
		Auth: app.AuthConfig{
			JWT:         app.JWTSettings{Secret: "test-secret", Issuer: "cms-auth"},
			AccessDays:  7,
			RefreshDays: 30,
			LoginRate:   app.RateSettings{Limit: 100, Window: time.Minute},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	clock := auth.NewFakeClock(T0)
	memory := cache.NewMemoryStore().WithNow(clock.Now)

	store, err := auth.NewGormSessionStore(db, time.Second)
	require.NoError(t, err)
	sessionCache, err := auth.NewSessionCache(memory)
	require.NoError(t, err)
	hasher, err := cfg.Auth.PasswordHasher()
	require.NoError(t, err)
	verifier, err := auth.NewCredentialVerifier(db, hasher)
	require.NoError(t, err)
	events, err := auth.NewLoginEventSink(db)
	require.NoError(t, err)

	sessions, err := auth.NewSessionService(auth.SessionDeps{
		Store:    store,
		Cache:    sessionCache,
		Codec:    auth.NewTokenCodec(cfg.Auth.TokenCodecConfig()),
		Verifier: verifier,
		Events:   events,
	}, cfg.Auth.SessionServiceConfig(clock))
	require.NoError(t, err)
	t.Cleanup(sessions.Drain)

	router, err := api.NewRouter(api.Dependencies{
		Config:   cfg,
		Sessions: sessions,
		Cache:    memory,
		Health: monitoring.NewHealthManager(
			checks.Database(db, time.Second),
			checks.Cache(memory, app.CacheDriverMemory, time.Second),
		),
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		Sessions: sessions,
		Clock:    clock,
		Cache:    memory,
		Config:   cfg,
	}
}

// CreateUser stores a user whose password digest is computed with the configured hasher.
func (e *Env) CreateUser(user models.User, password string) *models.User {
	e.T.Helper()

	if user.Salt == "" {
		user.Salt = "abcde"
	}
	hasher, err := e.Config.Auth.PasswordHasher()
	require.NoError(e.T, err)
	user.Password = hasher.Hash(user.Salt, password)

	require.NoError(e.T, e.DB.Create(&user).Error)
	return &user
}

// Login performs a successful login on surface and returns the token pair.
func (e *Env) Login(surface auth.Surface, username, password string) TokenPair {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/auth/"+string(surface)+"/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var pair TokenPair
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &pair)
	return pair
}

// Request issues a request against the router. A non-empty token is sent as a bearer credential.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ua/1")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// DecodeResponse parses the response envelope.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals an envelope payload.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dest), string(raw))
}
