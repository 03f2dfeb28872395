package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauth/internal/monitoring"
	"github.com/charlesng35/cmsauth/pkg/response"
)

// Health reports the database and cache checks. Any failing check answers 503.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(callContext(c))
		payload := gin.H{
			"status":     report.Status,
			"checks":     report.Checks,
			"checked_at": time.Now().UTC(),
		}

		if !report.Healthy {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.Envelope{
				Code:    http.StatusServiceUnavailable,
				Message: "Service unavailable",
				Data:    payload,
			})
			return
		}

		response.Success(c, payload)
	}
}
