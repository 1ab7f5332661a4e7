// internal/models/enterprise.go
package models

import (
	"github.com/google/uuid"
)

// Enterprise is the tenant. Every business row carries its id.
type Enterprise struct {
	BaseModel
	Name     string `json:"name" gorm:"size:255;not null"`
	Domain   string `json:"domain,omitempty" gorm:"size:255;index"`
	Settings JSONB  `json:"settings,omitempty" gorm:"type:jsonb"`
}

// User is a member of an enterprise. Identity is owned by the external auth
// provider; ExternalID is the provider's subject.
type User struct {
	BaseModel
	EnterpriseID uuid.UUID  `json:"enterprise_id" gorm:"type:uuid;not null;index"`
	ExternalID   string     `json:"external_id" gorm:"size:255;uniqueIndex"`
	Email        string     `json:"email" gorm:"size:255;not null"`
	Name         string     `json:"name" gorm:"size:255"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`

	Enterprise *Enterprise `json:"enterprise,omitempty" gorm:"foreignKey:EnterpriseID"`
}
