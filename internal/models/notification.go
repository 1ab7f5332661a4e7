// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	BaseModel
	EnterpriseID uuid.UUID            `json:"enterprise_id" gorm:"type:uuid;not null;index"`
	RecipientID  uuid.UUID            `json:"recipient_id" gorm:"type:uuid;not null;index"`
	Type         string               `json:"type" gorm:"type:varchar(50);not null;index"`
	Title        string               `json:"title" gorm:"size:255;not null"`
	Message      string               `json:"message" gorm:"type:text;not null"`
	Priority     NotificationPriority `json:"priority" gorm:"type:varchar(20);default:'medium';index"`
	IsRead       bool                 `json:"is_read" gorm:"default:false;index"`
	ReadAt       *time.Time           `json:"read_at"`
	IsDismissed  bool                 `json:"is_dismissed" gorm:"default:false"`
	DismissedAt  *time.Time           `json:"dismissed_at"`
	ContractID   *uuid.UUID           `json:"contract_id,omitempty" gorm:"type:uuid"`
	VendorID     *uuid.UUID           `json:"vendor_id,omitempty" gorm:"type:uuid"`
	ActionURL    string               `json:"action_url,omitempty" gorm:"size:512"`
	ArchivedAt   *time.Time           `json:"archived_at,omitempty" gorm:"index"`
}
