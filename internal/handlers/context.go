package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// callContext is the context session calls run under. Requests built without an
// *http.Request (unit tests driving a bare gin.Context) fall back to Background.
func callContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// clientOf returns the caller address and agent recorded on login events.
func clientOf(c *gin.Context) (ip, userAgent string) {
	if c == nil || c.Request == nil {
		return "", ""
	}
	return c.ClientIP(), c.Request.UserAgent()
}
