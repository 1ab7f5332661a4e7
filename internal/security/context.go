// Package security carries the authenticated caller through a request and
// answers role questions about it.
package security

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pactwise/pactwise-backend/internal/models"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
)

const ginKey = "security_context"

// Role sets used by the services.
var (
	Owners          = []models.UserRole{models.UserRoleOwner}
	Admins          = []models.UserRole{models.UserRoleOwner, models.UserRoleAdmin}
	Managers        = []models.UserRole{models.UserRoleOwner, models.UserRoleAdmin, models.UserRoleManager}
	ContractWriters = []models.UserRole{models.UserRoleOwner, models.UserRoleAdmin, models.UserRoleManager, models.UserRoleUser}
)

type Context struct {
	UserID       uuid.UUID       `json:"user_id"`
	EnterpriseID uuid.UUID       `json:"enterprise_id"`
	Role         models.UserRole `json:"role"`
	Email        string          `json:"email,omitempty"`
}

func (c Context) HasRole(roles ...models.UserRole) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// RequireRole returns an error wrapping ErrForbidden unless the caller holds one of roles.
func (c Context) RequireRole(roles ...models.UserRole) error {
	if c.HasRole(roles...) {
		return nil
	}
	return fmt.Errorf("role %q: %w", c.Role, ErrForbidden)
}

func Set(c *gin.Context, sec Context) {
	c.Set(ginKey, sec)
	c.Set("user_id", sec.UserID.String())
	c.Set("enterprise_id", sec.EnterpriseID.String())
	c.Set("role", string(sec.Role))
}

func FromGin(c *gin.Context) (Context, error) {
	value, exists := c.Get(ginKey)
	if !exists {
		return Context{}, ErrUnauthenticated
	}
	sec, ok := value.(Context)
	if !ok || sec.UserID == uuid.Nil || sec.EnterpriseID == uuid.Nil {
		return Context{}, ErrUnauthenticated
	}
	return sec, nil
}
