package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauth/internal/auth"
	"github.com/charlesng35/cmsauth/internal/handlers"
	"github.com/charlesng35/cmsauth/internal/middleware"
)

type authRouteDeps struct {
	Role       auth.RoleClass
	Handler    *handlers.AuthHandler
	Sessions   middleware.Authorizer
	LoginLimit gin.HandlerFunc
}

func registerAuthRoutes(engine *gin.Engine, surface auth.Surface, deps authRouteDeps) {
	group := engine.Group("/auth/" + string(surface))
	{
		group.POST("/login", deps.LoginLimit, deps.Handler.Login)
		group.PATCH("/token", middleware.RequireRefresh(deps.Sessions, deps.Role), deps.Handler.Refresh)
		group.DELETE("/token", middleware.RequireAccess(deps.Sessions, deps.Role), deps.Handler.Revoke)
		group.GET("/me", middleware.RequireAccess(deps.Sessions, deps.Role), deps.Handler.Me)
	}
}
