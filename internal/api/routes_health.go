package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauth/internal/app"
	"github.com/charlesng35/cmsauth/internal/handlers"
	"github.com/charlesng35/cmsauth/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled {
		return
	}
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}
	r.GET("/health", handlers.Health(manager))
}
