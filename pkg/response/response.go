package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/cmsauth/pkg/errors"
)

// Envelope is the JSON body of every API response. Code duplicates the HTTP status.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success writes a 200 envelope carrying data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{
		Code: http.StatusOK,
		Data: data,
	})
}

// Error writes an error envelope derived from an AppError and aborts the handler chain.
// Errors that are not AppErrors are rendered as an opaque 500.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	message := appErr.Message
	if status >= http.StatusInternalServerError {
		message = appErrors.ErrInternalServer.Message
		// the access log records the cause
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, Envelope{
		Code:    status,
		Message: message,
		Data:    appErr.Data,
	})
}
