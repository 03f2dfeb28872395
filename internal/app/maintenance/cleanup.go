package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/cmsauth/pkg/logger"
)

const (
	defaultSessionSpec  = "@hourly"
	defaultCacheSpec    = "@every 10m"
	defaultSessionGrace = 24 * time.Hour
)

// SessionPurger deletes session rows whose refresh expiry is older than grace.
type SessionPurger interface {
	CleanupExpired(ctx context.Context, grace time.Duration) (int64, error)
}

// CachePurger removes expired entries from cache backends without native TTLs.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner schedules background purges of expired sessions and stale cache entries.
type Cleaner struct {
	sessions SessionPurger
	cache    CachePurger
	cron     *cron.Cron
	log      *zap.Logger
	grace    time.Duration

	sessionSchedule string
	cacheSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSessionSchedule overrides the cron expression for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron expression for cache entry cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithSessionGrace sets how long expired session rows are kept.
func WithSessionGrace(grace time.Duration) Option {
	return func(cleaner *Cleaner) {
		if grace >= 0 {
			cleaner.grace = grace
		}
	}
}

// NewCleaner constructs a Cleaner. A nil purger skips the corresponding job.
func NewCleaner(sessions SessionPurger, cache CachePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		cache:           cache,
		grace:           defaultSessionGrace,
		sessionSchedule: defaultSessionSpec,
		cacheSchedule:   defaultCacheSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs and launches the scheduler when at least one job exists.
func (c *Cleaner) Start() error {
	if c.sessions == nil && c.cache == nil {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.purgeSessions(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.purgeCache(context.Background()); err != nil {
				c.log.Warn("cache cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured purge sequentially and aggregates failures.
func (c *Cleaner) RunOnce(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		stats Stats
		errs  error
		err   error
	)

	if c.sessions != nil {
		stats.Sessions, err = c.purgeSessions(ctx)
		errs = multierr.Append(errs, err)
	}
	if c.cache != nil {
		stats.CacheEntries, err = c.purgeCache(ctx)
		errs = multierr.Append(errs, err)
	}

	return stats, errs
}

// Stats reports how many records a cleanup run removed.
type Stats struct {
	Sessions     int64
	CacheEntries int64
}

func (c *Cleaner) purgeSessions(ctx context.Context) (int64, error) {
	return c.sessions.CleanupExpired(ctx, c.grace)
}

func (c *Cleaner) purgeCache(ctx context.Context) (int64, error) {
	removed, err := c.cache.PurgeExpired(ctx)
	if err == nil && removed > 0 {
		c.log.Debug("purged expired cache entries", zap.Int64("count", removed))
	}
	return removed, err
}
