package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauth/internal/app"
	"github.com/charlesng35/cmsauth/internal/auth"
	"github.com/charlesng35/cmsauth/internal/cache"
	"github.com/charlesng35/cmsauth/internal/handlers"
	"github.com/charlesng35/cmsauth/internal/middleware"
	"github.com/charlesng35/cmsauth/internal/monitoring"
)

// Dependencies are the runtime components the router exposes over HTTP.
type Dependencies struct {
	Config   *app.Config
	Sessions *auth.SessionService
	// Cache backs login rate limiting. Nil disables throttling.
	Cache  cache.Store
	Health *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers the auth surfaces.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	cfg := deps.Config

	location, err := cfg.Server.Location()
	if err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins))

	registerHealthRoutes(r, cfg, deps.Health)
	registerMetricsRoute(r, cfg)

	loginLimit := middleware.RateLimit(deps.Cache, cfg.Auth.LoginRateLimit())
	for _, surface := range []auth.Surface{auth.SurfaceManager, auth.SurfaceOpen} {
		role, err := surface.RoleClass()
		if err != nil {
			return nil, err
		}
		handler, err := handlers.NewAuthHandler(surface, deps.Sessions, location)
		if err != nil {
			return nil, err
		}
		registerAuthRoutes(r, surface, authRouteDeps{
			Role:       role,
			Handler:    handler,
			Sessions:   deps.Sessions,
			LoginLimit: loginLimit,
		})
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
