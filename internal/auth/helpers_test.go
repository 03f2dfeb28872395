package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauth/internal/cache"
	"github.com/charlesng35/cmsauth/internal/database/testutil"
	"github.com/charlesng35/cmsauth/internal/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var errCacheDown = errors.New("cache unavailable")

type testEnv struct {
	db     *gorm.DB
	svc    *SessionService
	clock  *FakeClock
	store  *GormSessionStore
	cache  SessionCache
	memory *cache.MemoryStore
}

type envOption func(*envConfig)

type envConfig struct {
	cache     SessionCache
	store     SessionStore
	wrapStore func(SessionStore) SessionStore
}

func withCache(c SessionCache) envOption { return func(cfg *envConfig) { cfg.cache = c } }
func withStore(s SessionStore) envOption { return func(cfg *envConfig) { cfg.store = s } }

// wrapStore decorates the real store, so inserts still land in sqlite.
func wrapStore(wrap func(SessionStore) SessionStore) envOption {
	return func(cfg *envConfig) { cfg.wrapStore = wrap }
}

// setupSessionService builds the service with access 7d, refresh 30d and secret "test-secret",
// the clock frozen at 2024-01-01T00:00:00Z.
func setupSessionService(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := NewFakeClock(t0)

	store, err := NewGormSessionStore(db, time.Second)
	require.NoError(t, err)

	memory := cache.NewMemoryStore().WithNow(clock.Now)
	sessionCache, err := NewSessionCache(memory)
	require.NoError(t, err)

	verifier, err := NewCredentialVerifier(db, DigestHasher{})
	require.NoError(t, err)
	events, err := NewLoginEventSink(db)
	require.NoError(t, err)

	deps := SessionDeps{
		Store:    store,
		Cache:    sessionCache,
		Codec:    NewTokenCodec(TokenCodecConfig{Secret: "test-secret"}),
		Verifier: verifier,
		Events:   events,
	}
	if cfg.cache != nil {
		deps.Cache = cfg.cache
	}
	if cfg.store != nil {
		deps.Store = cfg.store
	}
	if cfg.wrapStore != nil {
		deps.Store = cfg.wrapStore(store)
	}

	svc, err := NewSessionService(deps, SessionConfig{
		AccessLifetime:  Days(7),
		RefreshLifetime: Days(30),
		RotationWindow:  Days(3),
		Clock:           clock,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Drain)

	return &testEnv{db: db, svc: svc, clock: clock, store: store, cache: sessionCache, memory: memory}
}

func createUser(t *testing.T, db *gorm.DB, user models.User) *models.User {
	t.Helper()
	if user.Salt == "" {
		user.Salt = "abcde"
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// alice is the S1 user: id 42, salt "abcde", password "hunter2".
func alice(t *testing.T, db *gorm.DB, enabled bool) *models.User {
	t.Helper()
	return createUser(t, db, models.User{
		ID:       42,
		Name:     "alice",
		Phone:    "13800000000",
		Email:    "alice@example.com",
		Nickname: "Alice",
		Salt:     "abcde",
		Password: DigestHasher{}.Hash("abcde", "hunter2"),
		Enabled:  enabled,
	})
}

func loginAlice(t *testing.T, env *testEnv) *IssueResult {
	t.Helper()
	res, err := env.svc.Issue(context.Background(), IssueInput{
		Surface:   SurfaceManager,
		Handle:    "alice",
		Password:  "hunter2",
		ClientIP:  "1.2.3.4",
		UserAgent: "ua/1",
	})
	require.NoError(t, err)
	return res
}

// stubCache is a SessionCache whose answers are fixed.
type stubCache struct {
	has    bool
	hasErr error
	putErr error
	delErr error
	puts   int
}

func (c *stubCache) Put(context.Context, string, int64) error {
	c.puts++
	return c.putErr
}
func (c *stubCache) Has(context.Context, string) (bool, error) { return c.has, c.hasErr }
func (c *stubCache) Delete(context.Context, string) error { return c.delErr }

// failingStore rejects every insert.
type failingStore struct {
	SessionStore
	err error
}

func (s failingStore) Insert(context.Context, *models.Session) error { return s.err }

// brokenStore fails the selected reads and deletes of an otherwise working store.
type brokenStore struct {
	SessionStore
	getErr    error
	deleteErr error
}

func (s brokenStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.SessionStore.Get(ctx, sessionID)
}

func (s brokenStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	return s.SessionStore.Delete(ctx, sessionID)
}
