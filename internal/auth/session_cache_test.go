package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/cmsauth/internal/cache"
)

func TestSessionCacheOnMemoryStore(t *testing.T) {
	clock := NewFakeClock(t0)
	store := cache.NewMemoryStore().WithNow(clock.Now)
	sessions, err := NewSessionCache(store)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sessions.Put(ctx, "sid", 10))

	value, ok, err := store.Get(ctx, "jwt:sid")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "true", string(value))

	live, err := sessions.Has(ctx, "sid")
	require.NoError(t, err)
	require.True(t, live)

	clock.Advance(10 * time.Second)
	live, err = sessions.Has(ctx, "sid")
	require.NoError(t, err)
	require.False(t, live)
}

func TestSessionCacheCoercesNonPositiveTTL(t *testing.T) {
	clock := NewFakeClock(t0)
	sessions, err := NewSessionCache(cache.NewMemoryStore().WithNow(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	for _, ttl := range []int64{0, -5} {
		require.NoError(t, sessions.Put(ctx, "sid", ttl))

		live, err := sessions.Has(ctx, "sid")
		require.NoError(t, err)
		require.True(t, live, "ttl %d must still create a live entry", ttl)

		clock.Advance(time.Second)
		live, err = sessions.Has(ctx, "sid")
		require.NoError(t, err)
		require.False(t, live, "ttl %d must be coerced to one second", ttl)
	}
}

func TestSessionCacheDeleteIsIdempotent(t *testing.T) {
	sessions, err := NewSessionCache(cache.NewMemoryStore())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sessions.Put(ctx, "sid", 60))
	require.NoError(t, sessions.Delete(ctx, "sid"))
	require.NoError(t, sessions.Delete(ctx, "sid"))

	live, err := sessions.Has(ctx, "sid")
	require.NoError(t, err)
	require.False(t, live)
}

func TestSessionCacheOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore(cache.RedisConfig{Address: mr.Addr(), Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sessions, err := NewSessionCache(store)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sessions.Put(ctx, "sid", 604800))
	require.Equal(t, 604800*time.Second, mr.TTL("jwt:sid"))

	got, err := mr.Get("jwt:sid")
	require.NoError(t, err)
	require.Equal(t, "true", got)

	mr.Close()
	live, err := sessions.Has(ctx, "sid")
	require.Error(t, err)
	require.False(t, live)
}

func TestNewSessionCacheRequiresStore(t *testing.T) {
	_, err := NewSessionCache(nil)
	require.Error(t, err)
}
