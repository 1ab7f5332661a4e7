// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pactwise/pactwise-backend/internal/i18n"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/security"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

// AuthRequired validates the bearer token and attaches the caller's security
// context. Tokens must carry user, enterprise and a known role.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(strings.TrimSpace(parts[1]))
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
			c.Abort()
			return
		}

		sec, ok := securityContext(claims)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		security.Set(c, sec)
		c.Next()
	}
}

func securityContext(claims *utils.JWTClaims) (security.Context, bool) {
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return security.Context{}, false
	}
	enterpriseID, err := uuid.Parse(claims.EnterpriseID)
	if err != nil {
		return security.Context{}, false
	}

	role := models.UserRole(claims.Role)
	if !role.Valid() {
		return security.Context{}, false
	}

	return security.Context{
		UserID:       userID,
		EnterpriseID: enterpriseID,
		Role:         role,
		Email:        claims.Email,
	}, true
}
