package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauth/internal/api"
	"github.com/charlesng35/cmsauth/internal/app"
	"github.com/charlesng35/cmsauth/internal/app/maintenance"
	"github.com/charlesng35/cmsauth/internal/auth"
	"github.com/charlesng35/cmsauth/internal/cache"
	"github.com/charlesng35/cmsauth/internal/database"
	"github.com/charlesng35/cmsauth/internal/monitoring"
	"github.com/charlesng35/cmsauth/internal/monitoring/checks"
	"github.com/charlesng35/cmsauth/pkg/logger"
)

const checkTimeout = 2 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	Config   *app.Config
	DB       *gorm.DB
	Cache    cache.Store
	Sessions *auth.SessionService
	Health   *monitoring.HealthManager
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// loadConfig reads configuration, fills runtime defaults and initialises logging.
func loadConfig(path string) (*app.Config, error) {
	var paths []string
	if p := strings.TrimSpace(path); p != "" {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config path %q: %w", p, err)
		}
		paths = append(paths, p)
	}

	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return nil, err
	}

	fallbacks, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return nil, err
	}

	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	log := logger.WithModule("bootstrap")
	for key := range fallbacks {
		log.Warn("using built-in default", zap.String("key", key))
	}

	return cfg, nil
}

// openDatabase connects to the configured database and migrates the auth tables.
func openDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.OpenConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

// openCache selects the allowlist backend named by cache.driver.
func openCache(cfg *app.Config, db *gorm.DB) (cache.Store, error) {
	log := logger.WithModule("cache")

	switch driver := cfg.Cache.DriverName(); driver {
	case app.CacheDriverRedis:
		store, err := cache.NewRedisStore(cfg.Cache.RedisClientConfig())
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		return store, nil
	case app.CacheDriverDatabase:
		log.Info("using database-backed cache")
		return cache.NewDatabaseStore(db), nil
	case app.CacheDriverMemory:
		log.Info("using process-local cache")
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}
}

// buildSessionService assembles the session lifecycle from its collaborators.
func buildSessionService(cfg *app.Config, db *gorm.DB, store cache.Store, clock auth.Clock) (*auth.SessionService, error) {
	sessionStore, err := auth.NewGormSessionStore(db, cfg.Database.Pool.AcquireTimeout)
	if err != nil {
		return nil, err
	}

	sessionCache, err := auth.NewSessionCache(store)
	if err != nil {
		return nil, err
	}

	hasher, err := cfg.Auth.PasswordHasher()
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewCredentialVerifier(db, hasher)
	if err != nil {
		return nil, err
	}

	events, err := auth.NewLoginEventSink(db)
	if err != nil {
		return nil, err
	}

	svc, err := auth.NewSessionService(auth.SessionDeps{
		Store:    sessionStore,
		Cache:    sessionCache,
		Codec:    auth.NewTokenCodec(cfg.Auth.TokenCodecConfig()),
		Verifier: verifier,
		Events:   events,
	}, cfg.Auth.SessionServiceConfig(clock))
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}
	return svc, nil
}

// newCleaner schedules session cleanup, plus cache cleanup when the backend lacks native TTLs.
func newCleaner(cfg *app.Config, sessions *auth.SessionService, store cache.Store) *maintenance.Cleaner {
	var purger maintenance.CachePurger
	if p, ok := store.(maintenance.CachePurger); ok {
		purger = p
	}

	return maintenance.NewCleaner(sessions, purger,
		maintenance.WithSessionSchedule(cfg.Maintenance.SessionSchedule),
		maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
		maintenance.WithSessionGrace(cfg.Maintenance.SessionGrace),
	)
}

// bootstrapRuntime initialises the database, cache, services and the HTTP router.
func bootstrapRuntime(cfg *app.Config) (*runtimeStack, error) {
	stack := &runtimeStack{Config: cfg}
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background())
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	var err error
	if stack.DB, err = openDatabase(cfg); err != nil {
		return nil, err
	}

	if stack.Cache, err = openCache(cfg, stack.DB); err != nil {
		return nil, err
	}

	if stack.Sessions, err = buildSessionService(cfg, stack.DB, stack.Cache, auth.SystemClock{}); err != nil {
		return nil, err
	}

	stack.Health = monitoring.NewHealthManager(
		checks.Database(stack.DB, checkTimeout),
		checks.Cache(stack.Cache, cfg.Cache.DriverName(), checkTimeout),
	)

	stack.Cleaner = newCleaner(cfg, stack.Sessions, stack.Cache)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:   cfg,
		Sessions: stack.Sessions,
		Cache:    stack.Cache,
		Health:   stack.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, waits for pending login events and releases connections.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
		}
	}

	if s.Sessions != nil {
		s.Sessions.Drain()
	}

	var errs error
	if rc, ok := s.Cache.(*cache.RedisStore); ok && rc != nil {
		errs = multierr.Append(errs, rc.Close())
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}
	return errs
}
