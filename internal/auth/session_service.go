package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/cmsauth/internal/models"
	appErrors "github.com/charlesng35/cmsauth/pkg/errors"
	"github.com/charlesng35/cmsauth/pkg/logger"
	"github.com/charlesng35/cmsauth/pkg/metrics"
)

// Lifetime defaults, matching the configuration defaults.
const (
	DefaultAccessLifetime  = 7 * 24 * time.Hour
	DefaultRefreshLifetime = 365 * 24 * time.Hour
	DefaultRotationWindow  = 3 * 24 * time.Hour
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	// RotationWindow is how close to refresh expiry a refresh also rotates the refresh token.
	RotationWindow time.Duration
	Clock          Clock
}

// SessionDeps are the collaborators of the SessionService.
type SessionDeps struct {
	Store    SessionStore
	Cache    SessionCache
	Codec    *TokenCodec
	Verifier Verifier
	// Events is optional.
	Events LoginEventSink
}

// TokenPair is the credential pair currently bound to a session.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IssueInput holds one login attempt.
type IssueInput struct {
	Surface   Surface
	Handle    string
	Password  string
	ClientIP  string
	UserAgent string
}

// IssueResult is returned by a successful login.
type IssueResult struct {
	TokenPair
	SessionID string
	Role      RoleClass
	User      *models.User
}

// EditorIdentity is the caller attached to an authorised request.
type EditorIdentity struct {
	UserID int64
	Role   RoleClass
}

// SessionService issues, refreshes and revokes sessions and authorises access tokens.
type SessionService struct {
	store    SessionStore
	cache    SessionCache
	codec    *TokenCodec
	verifier Verifier
	events   LoginEventSink

	accessLifetime  time.Duration
	refreshLifetime time.Duration
	rotationWindow  time.Duration
	clock           Clock

	log      *zap.Logger
	inflight sync.WaitGroup
}

// NewSessionService wires the session lifecycle around the supplied collaborators.
func NewSessionService(deps SessionDeps, cfg SessionConfig) (*SessionService, error) {
	if deps.Store == nil {
		return nil, errors.New("session service: store is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("session service: cache is required")
	}
	if deps.Codec == nil {
		return nil, errors.New("session service: token codec is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("session service: credential verifier is required")
	}

	access := cfg.AccessLifetime
	if access <= 0 {
		access = DefaultAccessLifetime
	}
	refresh := cfg.RefreshLifetime
	if refresh <= 0 {
		refresh = DefaultRefreshLifetime
	}
	if access > refresh {
		access = refresh
	}
	window := cfg.RotationWindow
	if window <= 0 {
		window = DefaultRotationWindow
	}

	var clock Clock = SystemClock{}
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		store:           deps.Store,
		cache:           deps.Cache,
		codec:           deps.Codec,
		verifier:        deps.Verifier,
		events:          deps.Events,
		accessLifetime:  access,
		refreshLifetime: refresh,
		rotationWindow:  window,
		clock:           clock,
		log:             logger.WithModule("auth"),
	}, nil
}

// now truncates to whole seconds so stored expiries equal the token exp claims.
func (s *SessionService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}

// Issue verifies credentials and creates a new session.
func (s *SessionService) Issue(ctx context.Context, in IssueInput) (*IssueResult, error) {
	user, role, err := s.verifier.Verify(ctx, in.Surface, in.Handle, in.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(string(in.Surface), "failure").Inc()
		return nil, err
	}

	sessionID := uuid.NewString()
	now := s.now()
	accessExp := now.Add(s.accessLifetime)
	refreshExp := now.Add(s.refreshLifetime)

	base := Claims{SessionID: sessionID, UserID: user.ID, Role: role}
	accessToken, err := s.encode(base, TokenAccess, accessExp)
	if err != nil {
		return nil, appErrors.Internal(err)
	}
	refreshToken, err := s.encode(base, TokenRefresh, refreshExp)
	if err != nil {
		return nil, appErrors.Internal(err)
	}

	row := &models.Session{
		SessionID:        sessionID,
		UserID:           user.ID,
		RoleClass:        string(role),
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Insert(ctx, row); err != nil {
		s.log.Error("insert session", zap.Error(err), zap.Int64("user_id", user.ID))
		return nil, appErrors.Internal(err)
	}

	if err := s.cache.Put(ctx, sessionID, Unix(accessExp)-Unix(now)); err != nil {
		// The row stays behind without an allowlist entry; Authorize rejects it and cleanup purges it.
		metrics.SessionCacheErrors.WithLabelValues("put").Inc()
		s.log.Warn("session cache put failed after insert", zap.Error(err),
			zap.String("session_id", sessionID), zap.Int64("user_id", user.ID))
		return nil, appErrors.Internal(err)
	}

	metrics.AuthAttempts.WithLabelValues(string(in.Surface), "success").Inc()
	metrics.SessionsIssued.Inc()

	s.recordLogin(ctx, LoginEvent{
		UserID:    user.ID,
		Role:      role,
		Surface:   in.Surface,
		SessionID: sessionID,
		ClientIP:  in.ClientIP,
		UserAgent: in.UserAgent,
		At:        now,
	})

	return &IssueResult{
		TokenPair: TokenPair{
			AccessToken:      accessToken,
			AccessExpiresAt:  accessExp,
			RefreshToken:     refreshToken,
			RefreshExpiresAt: refreshExp,
		},
		SessionID: sessionID,
		Role:      role,
		User:      user,
	}, nil
}

// Refresh mints a new access token for the session bound to refreshToken. Near the end of the
// refresh lifetime the refresh token is rotated too.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return nil, appErrors.Unauthorized(err)
	}
	if claims.Kind != TokenRefresh {
		return nil, appErrors.Unauthorized(ErrTokenKind)
	}

	session, err := s.store.Get(ctx, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, appErrors.Unauthorized(err)
	}
	if err != nil {
		s.log.Error("load session", zap.Error(err),
			zap.String("session_id", claims.SessionID), zap.Int64("user_id", claims.UserID))
		return nil, appErrors.Internal(err)
	}

	now := s.now()
	if !now.Before(session.RefreshExpiresAt) {
		return nil, appErrors.Unauthorized(ErrSessionExpired)
	}

	role := RoleClass(session.RoleClass)
	base := Claims{SessionID: session.SessionID, UserID: session.UserID, Role: role}

	pair := TokenPair{
		RefreshToken:     session.RefreshToken,
		RefreshExpiresAt: session.RefreshExpiresAt.UTC(),
	}
	update := TokenUpdate{UpdatedAt: now}

	rotated := !now.Add(s.rotationWindow).Before(session.RefreshExpiresAt)
	if rotated {
		newRefreshExp := now.Add(s.refreshLifetime)
		newRefresh, err := s.encode(base, TokenRefresh, newRefreshExp)
		if err != nil {
			return nil, appErrors.Internal(err)
		}
		pair.RefreshToken = newRefresh
		pair.RefreshExpiresAt = newRefreshExp
		update.RefreshToken = &newRefresh
		update.RefreshExpiresAt = &newRefreshExp
	}

	accessExp := now.Add(s.accessLifetime)
	if accessExp.After(pair.RefreshExpiresAt) {
		accessExp = pair.RefreshExpiresAt
	}
	accessToken, err := s.encode(base, TokenAccess, accessExp)
	if err != nil {
		return nil, appErrors.Internal(err)
	}
	pair.AccessToken = accessToken
	pair.AccessExpiresAt = accessExp
	update.AccessToken = accessToken
	update.AccessExpiresAt = accessExp

	if err := s.store.UpdateTokens(ctx, session.SessionID, update); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, appErrors.Unauthorized(err)
		}
		s.log.Error("update session tokens", zap.Error(err),
			zap.String("session_id", session.SessionID), zap.Int64("user_id", session.UserID))
		return nil, appErrors.Internal(err)
	}

	if err := s.cache.Put(ctx, session.SessionID, Unix(accessExp)-Unix(now)); err != nil {
		metrics.SessionCacheErrors.WithLabelValues("put").Inc()
		s.log.Warn("session cache put failed on refresh", zap.Error(err), zap.String("session_id", session.SessionID))
		return nil, appErrors.Internal(err)
	}

	metrics.TokenRefreshes.WithLabelValues(strconv.FormatBool(rotated)).Inc()
	return &pair, nil
}

// Revoke ends the session bound to accessToken. Revoking an already revoked session succeeds.
func (s *SessionService) Revoke(ctx context.Context, accessToken string) error {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return appErrors.Unauthorized(err)
	}
	if claims.Kind != TokenAccess {
		return appErrors.Unauthorized(ErrTokenKind)
	}

	return s.revokeSession(ctx, claims.SessionID)
}

// RevokeUser revokes every session of a user and returns how many sessions were found.
func (s *SessionService) RevokeUser(ctx context.Context, userID int64) (int, error) {
	ids, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		s.log.Error("list user sessions", zap.Error(err), zap.Int64("user_id", userID))
		return 0, appErrors.Internal(err)
	}

	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, s.revokeSession(ctx, id))
	}
	return len(ids), errs
}

func (s *SessionService) revokeSession(ctx context.Context, sessionID string) error {
	cacheErr := s.cache.Delete(ctx, sessionID)
	if cacheErr != nil {
		metrics.SessionCacheErrors.WithLabelValues("delete").Inc()
		s.log.Error("session cache delete failed", zap.Error(cacheErr), zap.String("session_id", sessionID))
	}

	existed, err := s.store.Delete(ctx, sessionID)
	if err != nil {
		s.log.Warn("session row delete failed", zap.Error(err), zap.String("session_id", sessionID))
	}
	if existed {
		metrics.SessionsRevoked.Inc()
	}

	if cacheErr != nil {
		return appErrors.Internal(cacheErr)
	}
	return nil
}

// Authorize checks an access token against its expiry and the allowlist. A cache failure denies.
func (s *SessionService) Authorize(ctx context.Context, accessToken string) (*EditorIdentity, error) {
	claims, err := s.Inspect(accessToken, TokenAccess)
	if err != nil {
		return nil, err
	}

	live, err := s.cache.Has(ctx, claims.SessionID)
	if err != nil {
		metrics.SessionCacheErrors.WithLabelValues("has").Inc()
		s.log.Warn("session cache lookup failed; denying", zap.Error(err), zap.String("session_id", claims.SessionID))
		return nil, appErrors.Unauthorized(errors.Join(ErrSessionInactive, err))
	}
	if !live {
		return nil, appErrors.Unauthorized(ErrSessionInactive)
	}

	return &EditorIdentity{UserID: claims.UserID, Role: claims.Role}, nil
}

// Inspect decodes a token and checks its kind and expiry without consulting the allowlist.
func (s *SessionService) Inspect(token string, kind TokenKind) (*Claims, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, appErrors.Unauthorized(err)
	}
	if claims.Kind != kind {
		return nil, appErrors.Unauthorized(ErrTokenKind)
	}
	if claims.ExpiresAt <= Unix(s.clock.Now()) {
		return nil, appErrors.Unauthorized(ErrTokenExpired)
	}
	return claims, nil
}

// CleanupExpired deletes session rows whose refresh expiry is older than grace.
func (s *SessionService) CleanupExpired(ctx context.Context, grace time.Duration) (int64, error) {
	if grace < 0 {
		grace = 0
	}
	removed, err := s.store.DeleteExpired(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		metrics.SessionsPurged.Add(float64(removed))
		s.log.Info("purged expired sessions", zap.Int64("count", removed))
	}
	return removed, nil
}

// Drain waits for pending login event writes.
func (s *SessionService) Drain() {
	s.inflight.Wait()
}

func (s *SessionService) recordLogin(ctx context.Context, event LoginEvent) {
	if s.events == nil {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.events.Record(context.WithoutCancel(ctx), event); err != nil {
			s.log.Warn("record login event", zap.Error(err),
				zap.Int64("user_id", event.UserID), zap.String("session_id", event.SessionID))
		}
	}()
}

func (s *SessionService) encode(base Claims, kind TokenKind, exp time.Time) (string, error) {
	base.Kind = kind
	base.ExpiresAt = Unix(exp)
	token, err := s.codec.Encode(base)
	if err != nil {
		s.log.Error("sign token", zap.Error(err), zap.String("kind", string(kind)),
			zap.String("session_id", base.SessionID), zap.Int64("user_id", base.UserID))
	}
	return token, err
}
