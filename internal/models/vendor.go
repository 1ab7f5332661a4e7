// internal/models/vendor.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Vendor struct {
	BaseModel
	EnterpriseID uuid.UUID      `json:"enterprise_id" gorm:"type:uuid;not null;index"`
	Name         string         `json:"name" gorm:"size:255;not null"`
	Status       VendorStatus   `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	Category     string         `json:"category" gorm:"size:100;index"`
	ContactName  string         `json:"contact_name,omitempty" gorm:"size:255"`
	ContactEmail string         `json:"contact_email,omitempty" gorm:"size:255"`
	Website      string         `json:"website,omitempty" gorm:"size:255"`
	Tags         pq.StringArray `json:"tags" gorm:"type:text[]"`

	// Aggregates maintained by the vendor-scores job
	ActiveContracts    int        `json:"active_contracts" gorm:"default:0"`
	TotalContractValue float64    `json:"total_contract_value" gorm:"type:decimal(15,2);default:0"`
	ComplianceScore    float64    `json:"compliance_score" gorm:"type:decimal(5,2);default:0"`
	PerformanceScore   float64    `json:"performance_score" gorm:"type:decimal(5,2);default:0"`
	RiskLevel          RiskLevel  `json:"risk_level" gorm:"type:varchar(10);default:'low'"`
	ScoresUpdatedAt    *time.Time `json:"scores_updated_at"`
}
