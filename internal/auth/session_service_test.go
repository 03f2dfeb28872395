package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/cmsauth/internal/models"
	appErrors "github.com/charlesng35/cmsauth/pkg/errors"
	"github.com/charlesng35/cmsauth/pkg/logger"
	"github.com/charlesng35/cmsauth/pkg/metrics"
)

func TestIssueCreatesSession(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	ctx := context.Background()

	res := loginAlice(t, env)

	require.True(t, res.AccessExpiresAt.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	require.True(t, res.RefreshExpiresAt.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, RoleAdministrator, res.Role)
	require.EqualValues(t, 42, res.User.ID)
	require.Equal(t, "Alice", res.User.Nickname)

	row, err := env.store.Get(ctx, res.SessionID)
	require.NoError(t, err)
	require.Equal(t, res.AccessToken, row.AccessToken)
	require.Equal(t, res.RefreshToken, row.RefreshToken)
	require.True(t, row.AccessExpiresAt.Equal(res.AccessExpiresAt))
	require.True(t, row.RefreshExpiresAt.Equal(res.RefreshExpiresAt))
	require.Equal(t, "administrator", row.RoleClass)

	live, err := env.cache.Has(ctx, res.SessionID)
	require.NoError(t, err)
	require.True(t, live)

	identity, err := env.svc.Authorize(ctx, res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, EditorIdentity{UserID: 42, Role: RoleAdministrator}, *identity)

	env.svc.Drain()
	var events int64
	require.NoError(t, env.db.Model(&models.LoginEvent{}).Where("user_id = ?", 42).Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestIssueCacheTTLMatchesAccessLifetime(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	ctx := context.Background()

	res := loginAlice(t, env)

	env.clock.Advance(Days(7) - time.Second)
	live, err := env.cache.Has(ctx, res.SessionID)
	require.NoError(t, err)
	require.True(t, live)

	env.clock.Advance(time.Second)
	live, err = env.cache.Has(ctx, res.SessionID)
	require.NoError(t, err)
	require.False(t, live)
}

func TestIssueDisabledUser(t *testing.T) {
	sessions := &stubCache{}
	env := setupSessionService(t, withCache(sessions))
	alice(t, env.db, false)

	_, err := env.svc.Issue(context.Background(), IssueInput{
		Surface:  SurfaceManager,
		Handle:   "alice",
		Password: "hunter2",
	})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)
	require.ErrorIs(t, err, ErrUserDisabled)
	require.Equal(t, "用户已被禁用", appErrors.FromError(err).Message)

	env.svc.Drain()
	for _, model := range []any{&models.Session{}, &models.LoginEvent{}} {
		var count int64
		require.NoError(t, env.db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}
	require.Zero(t, sessions.puts)
}

func TestIssueStoreFailureWritesNothing(t *testing.T) {
	sessions := &stubCache{}
	env := setupSessionService(t, withStore(failingStore{err: errors.New("disk full")}), withCache(sessions))
	alice(t, env.db, true)

	_, err := env.svc.Issue(context.Background(), IssueInput{Surface: SurfaceManager, Handle: "alice", Password: "hunter2"})
	require.ErrorIs(t, err, appErrors.ErrInternalServer)
	require.Zero(t, sessions.puts)

	env.svc.Drain()
	var events int64
	require.NoError(t, env.db.Model(&models.LoginEvent{}).Count(&events).Error)
	require.Zero(t, events)
}

func TestIssueCacheFailureLeavesRowButDeniesAccess(t *testing.T) {
	sessions := &stubCache{putErr: errCacheDown}
	env := setupSessionService(t, withCache(sessions))
	alice(t, env.db, true)

	_, err := env.svc.Issue(context.Background(), IssueInput{Surface: SurfaceOpen, Handle: "alice", Password: "hunter2"})
	require.ErrorIs(t, err, appErrors.ErrInternalServer)

	var rows int64
	require.NoError(t, env.db.Model(&models.Session{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestIssueCreatesIndependentSessions(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)

	first := loginAlice(t, env)
	second := loginAlice(t, env)
	require.NotEqual(t, first.SessionID, second.SessionID)
	require.NotEqual(t, first.AccessToken, second.AccessToken)

	require.NoError(t, env.svc.Revoke(context.Background(), first.AccessToken))
	_, err := env.svc.Authorize(context.Background(), second.AccessToken)
	require.NoError(t, err)
}

func TestRefreshOutsideRotationWindow(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)

	env.clock.Advance(Days(1))
	pair, err := env.svc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)

	require.Equal(t, res.RefreshToken, pair.RefreshToken)
	require.True(t, pair.RefreshExpiresAt.Equal(res.RefreshExpiresAt))
	require.True(t, pair.AccessExpiresAt.Equal(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)))
	require.NotEqual(t, res.AccessToken, pair.AccessToken)

	row, err := env.store.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.Equal(t, pair.AccessToken, row.AccessToken)
	require.Equal(t, res.RefreshToken, row.RefreshToken)

	identity, err := env.svc.Authorize(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.EqualValues(t, 42, identity.UserID)
}

func TestRefreshInsideRotationWindow(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)

	env.clock.Advance(Days(28))
	pair, err := env.svc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)

	require.NotEqual(t, res.RefreshToken, pair.RefreshToken)
	require.True(t, pair.RefreshExpiresAt.Equal(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)))
	require.True(t, pair.AccessExpiresAt.Equal(time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)))

	row, err := env.store.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, row.RefreshToken)
	require.True(t, row.RefreshExpiresAt.Equal(pair.RefreshExpiresAt))
}

func TestRefreshRotationBoundary(t *testing.T) {
	cases := []struct {
		name    string
		advance time.Duration
		rotated bool
	}{
		{"more than three days left", Days(27) - time.Second, false},
		{"exactly three days left", Days(27), true},
		{"less than three days left", Days(27) + time.Second, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupSessionService(t)
			alice(t, env.db, true)
			res := loginAlice(t, env)

			env.clock.Advance(tc.advance)
			pair, err := env.svc.Refresh(context.Background(), res.RefreshToken)
			require.NoError(t, err)
			require.Equal(t, tc.rotated, pair.RefreshToken != res.RefreshToken)
			require.False(t, pair.AccessExpiresAt.After(pair.RefreshExpiresAt))
		})
	}
}

func TestRefreshClampsAccessExpiryToRefreshExpiry(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)

	// 26 days in, 4 days remain: no rotation, and a 7 day access token would outlive the session.
	env.clock.Advance(Days(26))
	pair, err := env.svc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, res.RefreshToken, pair.RefreshToken)
	require.True(t, pair.AccessExpiresAt.Equal(res.RefreshExpiresAt))
}

func TestRefreshTwiceInSameSecond(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)
	ctx := context.Background()

	env.clock.Advance(Days(1))
	first, err := env.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	second, err := env.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, first.AccessToken, second.AccessToken)

	identity, err := env.svc.Authorize(ctx, second.AccessToken)
	require.NoError(t, err)
	require.EqualValues(t, 42, identity.UserID)
}

func TestRefreshStoreFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	env := setupSessionService(t, wrapStore(func(store SessionStore) SessionStore {
		return brokenStore{SessionStore: store, getErr: errors.New("db gone")}
	}))
	alice(t, env.db, true)
	res := loginAlice(t, env)

	_, err := env.svc.Refresh(context.Background(), res.RefreshToken)
	require.ErrorIs(t, err, appErrors.ErrInternalServer)

	entries := logs.FilterMessage("load session").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, res.SessionID, fields["session_id"])
	require.EqualValues(t, 42, fields["user_id"])
	require.Equal(t, "db gone", fields["error"])
}

func TestRefreshExpiredSession(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)

	env.clock.Advance(Days(30))
	_, err := env.svc.Refresh(context.Background(), res.RefreshToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestRevokeEndsSession(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)
	ctx := context.Background()

	require.NoError(t, env.svc.Revoke(ctx, res.AccessToken))
	require.NoError(t, env.svc.Revoke(ctx, res.AccessToken), "revoke must be idempotent")

	_, err := env.svc.Authorize(ctx, res.AccessToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.ErrorIs(t, err, ErrSessionInactive)

	_, err = env.svc.Refresh(ctx, res.RefreshToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = env.store.Get(ctx, res.SessionID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevokeCacheFailureStillDeletesRow(t *testing.T) {
	sessions := &stubCache{has: true}
	env := setupSessionService(t, withCache(sessions))
	alice(t, env.db, true)
	res := loginAlice(t, env)

	sessions.delErr = errCacheDown
	err := env.svc.Revoke(context.Background(), res.AccessToken)
	require.ErrorIs(t, err, appErrors.ErrInternalServer)

	_, err = env.store.Get(context.Background(), res.SessionID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevokeStoreFailureStillSucceeds(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	env := setupSessionService(t, wrapStore(func(store SessionStore) SessionStore {
		return brokenStore{SessionStore: store, deleteErr: errors.New("db gone")}
	}))
	alice(t, env.db, true)
	res := loginAlice(t, env)
	ctx := context.Background()

	require.NoError(t, env.svc.Revoke(ctx, res.AccessToken))

	_, err := env.svc.Authorize(ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrSessionInactive)

	entries := logs.FilterMessage("session row delete failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, res.SessionID, entries[0].ContextMap()["session_id"])
}

func TestExpiredAccessWithLiveRefresh(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)
	ctx := context.Background()

	env.clock.Advance(Days(8))
	_, err := env.svc.Authorize(ctx, res.AccessToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	pair, err := env.svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.True(t, pair.AccessExpiresAt.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))

	identity, err := env.svc.Authorize(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, RoleAdministrator, identity.Role)
}

func TestAuthorizeRejectsExpiredTokenEvenWhenCached(t *testing.T) {
	sessions := &stubCache{has: true}
	env := setupSessionService(t, withCache(sessions))
	alice(t, env.db, true)
	res := loginAlice(t, env)

	env.clock.Advance(Days(7))
	_, err := env.svc.Authorize(context.Background(), res.AccessToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthorizeFailsClosed(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		sessions := &stubCache{has: false}
		env := setupSessionService(t, withCache(sessions))
		alice(t, env.db, true)
		res := loginAlice(t, env)

		_, err := env.svc.Authorize(context.Background(), res.AccessToken)
		require.ErrorIs(t, err, appErrors.ErrUnauthorized)
		require.ErrorIs(t, err, ErrSessionInactive)
	})

	t.Run("unavailable", func(t *testing.T) {
		sessions := &stubCache{has: true}
		env := setupSessionService(t, withCache(sessions))
		alice(t, env.db, true)
		res := loginAlice(t, env)

		sessions.hasErr = errCacheDown
		_, err := env.svc.Authorize(context.Background(), res.AccessToken)
		require.ErrorIs(t, err, appErrors.ErrUnauthorized)
		require.ErrorIs(t, err, errCacheDown)
	})
}

func TestWrongTokenKindRejected(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)
	ctx := context.Background()

	_, err := env.svc.Refresh(ctx, res.AccessToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.ErrorIs(t, err, ErrTokenKind)

	err = env.svc.Revoke(ctx, res.RefreshToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.ErrorIs(t, err, ErrTokenKind)

	_, err = env.svc.Authorize(ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrTokenKind)

	// the session survives the rejected revoke
	_, err = env.svc.Authorize(ctx, res.AccessToken)
	require.NoError(t, err)
}

func TestMalformedTokensAreUnauthorized(t *testing.T) {
	env := setupSessionService(t)
	ctx := context.Background()

	_, err := env.svc.Authorize(ctx, "garbage")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	_, err = env.svc.Refresh(ctx, "")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.ErrorIs(t, env.svc.Revoke(ctx, "a.b.c"), appErrors.ErrUnauthorized)
}

func TestInspect(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	res := loginAlice(t, env)

	claims, err := env.svc.Inspect(res.RefreshToken, TokenRefresh)
	require.NoError(t, err)
	require.Equal(t, res.SessionID, claims.SessionID)

	_, err = env.svc.Inspect(res.RefreshToken, TokenAccess)
	require.ErrorIs(t, err, ErrTokenKind)

	env.clock.Advance(Days(30))
	_, err = env.svc.Inspect(res.RefreshToken, TokenRefresh)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevokeUser(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	first := loginAlice(t, env)
	second := loginAlice(t, env)
	ctx := context.Background()

	count, err := env.svc.RevokeUser(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		_, err := env.svc.Authorize(ctx, token)
		require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	}

	count, err = env.svc.RevokeUser(ctx, 42)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCleanupExpired(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	stale := loginAlice(t, env)
	ctx := context.Background()

	env.clock.Advance(Days(20))
	fresh := loginAlice(t, env)

	// stale refresh expiry is T0+30d; fresh is T0+50d
	env.clock.Set(t0.Add(Days(30) + 12*time.Hour))
	removed, err := env.svc.CleanupExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, removed, "rows within the grace period are kept")

	env.clock.Set(t0.Add(Days(31) + time.Second))
	removed, err = env.svc.CleanupExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, err = env.store.Get(ctx, stale.SessionID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.store.Get(ctx, fresh.SessionID)
	require.NoError(t, err)
}

func TestNewSessionServiceValidation(t *testing.T) {
	_, err := NewSessionService(SessionDeps{}, SessionConfig{})
	require.Error(t, err)

	env := setupSessionService(t)
	verifier, err := NewCredentialVerifier(env.db, nil)
	require.NoError(t, err)
	svc, err := NewSessionService(SessionDeps{
		Store:    env.store,
		Cache:    env.cache,
		Codec:    NewTokenCodec(TokenCodecConfig{Secret: "test-secret"}),
		Verifier: verifier,
	}, SessionConfig{AccessLifetime: Days(60), RefreshLifetime: Days(30)})
	require.NoError(t, err)
	require.Equal(t, Days(30), svc.accessLifetime, "access lifetime never exceeds refresh lifetime")
	require.Equal(t, DefaultRotationWindow, svc.rotationWindow)
}

func TestSessionCountersOnlyIncrease(t *testing.T) {
	env := setupSessionService(t)
	alice(t, env.db, true)
	ctx := context.Background()

	issued := promtest.ToFloat64(metrics.SessionsIssued)
	revoked := promtest.ToFloat64(metrics.SessionsRevoked)

	res := loginAlice(t, env)
	require.NoError(t, env.svc.Revoke(ctx, res.AccessToken))
	require.NoError(t, env.svc.Revoke(ctx, res.AccessToken))

	require.Equal(t, issued+1, promtest.ToFloat64(metrics.SessionsIssued))
	require.Equal(t, revoked+1, promtest.ToFloat64(metrics.SessionsRevoked), "a repeated revoke is not counted twice")
}
