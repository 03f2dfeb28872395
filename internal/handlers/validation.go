package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/cmsauth/pkg/errors"
	"github.com/charlesng35/cmsauth/pkg/response"
	appValidator "github.com/charlesng35/cmsauth/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When either step fails an error envelope is written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload").WithInternal(err))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		var failures appValidator.ValidationErrors
		if errors.As(err, &failures) {
			response.Error(c, appErrors.NewValidation(failures.Fields()))
			return false
		}
		response.Error(c, appErrors.NewBadRequest("invalid request payload").WithInternal(err))
		return false
	}

	return true
}
