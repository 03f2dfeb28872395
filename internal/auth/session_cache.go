package auth

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/cmsauth/internal/cache"
)

const sessionCacheKeyPrefix = "jwt:"

// SessionCache is the liveness allowlist. A session id absent from it is not active.
type SessionCache interface {
	// Put marks the session live for ttlSeconds; values <= 0 are coerced to one second.
	Put(ctx context.Context, sessionID string, ttlSeconds int64) error
	Has(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type storeSessionCache struct {
	store cache.Store
}

// NewSessionCache stores allowlist entries as jwt:<session_id> = "true" in the shared cache.
func NewSessionCache(store cache.Store) (SessionCache, error) {
	if store == nil {
		return nil, errors.New("session cache: store is required")
	}
	return &storeSessionCache{store: store}, nil
}

func (c *storeSessionCache) Put(ctx context.Context, sessionID string, ttlSeconds int64) error {
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	return c.store.Set(ctx, SessionCacheKey(sessionID), []byte("true"), time.Duration(ttlSeconds)*time.Second)
}

func (c *storeSessionCache) Has(ctx context.Context, sessionID string) (bool, error) {
	value, ok, err := c.store.Get(ctx, SessionCacheKey(sessionID))
	if err != nil {
		return false, err
	}
	return ok && string(value) == "true", nil
}

func (c *storeSessionCache) Delete(ctx context.Context, sessionID string) error {
	return c.store.Delete(ctx, SessionCacheKey(sessionID))
}

// SessionCacheKey returns the cache key for a session id.
func SessionCacheKey(sessionID string) string {
	return sessionCacheKeyPrefix + sessionID
}
