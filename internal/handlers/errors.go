// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/i18n"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/security"
	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

// respondError maps service errors onto the response envelope. resource names
// the i18n not-found key prefix.
func respondError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.NotFoundResponse(c, resource)
	case errors.Is(err, security.ErrUnauthenticated):
		utils.UnauthorizedResponse(c, "")
	case errors.Is(err, security.ErrForbidden):
		utils.Fail(c, utils.CodeForbidden, "", nil)
	case errors.Is(err, services.ErrUsageLimitExceeded):
		utils.Fail(c, utils.CodeUsageLimitExceeded, "", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.Is(err, config.ErrMissingConfig):
		logrus.WithError(err).Error("Missing configuration")
		utils.Fail(c, utils.CodeConfiguration, "", nil)
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("request_id"),
		}).Error("Request failed")
		utils.Fail(c, utils.CodeInternal, "", nil)
	}
}

// caller returns the authenticated security context, responding 401 when absent.
func caller(c *gin.Context) (security.Context, bool) {
	sec, err := security.FromGin(c)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return security.Context{}, false
	}
	return sec, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyInvalidID, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and validates a request body, responding 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}
