// internal/models/contract.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Contract is never hard-deleted; lifecycle ends in expired, terminated or archived.
type Contract struct {
	BaseModel
	EnterpriseID uuid.UUID      `json:"enterprise_id" gorm:"type:uuid;not null;index"`
	VendorID     *uuid.UUID     `json:"vendor_id" gorm:"type:uuid;index"`
	Title        string         `json:"title" gorm:"size:255;not null"`
	Status       ContractStatus `json:"status" gorm:"type:varchar(30);not null;default:'draft';index"`
	ContractType string         `json:"contract_type" gorm:"size:100;index"`
	Notes        string         `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy    *uuid.UUID     `json:"created_by" gorm:"type:uuid"`

	// Uploaded document
	FileName   string `json:"file_name,omitempty" gorm:"size:255"`
	StorageKey string `json:"storage_key,omitempty" gorm:"size:512"`
	FileHash   string `json:"file_hash,omitempty" gorm:"size:64;index"`
	FileSize   int64  `json:"file_size,omitempty"`
	MimeType   string `json:"mime_type,omitempty" gorm:"size:100"`

	// Fields populated by the analysis pipeline or by manual edits
	AnalysisStatus     AnalysisStatus `json:"analysis_status" gorm:"type:varchar(20);default:'pending';index"`
	AnalysisError      string         `json:"analysis_error,omitempty" gorm:"type:text"`
	ExtractedParties   pq.StringArray `json:"extracted_parties" gorm:"type:text[]"`
	ExtractedPricing   string         `json:"extracted_pricing,omitempty" gorm:"size:255"`
	ExtractedStartDate *time.Time     `json:"extracted_start_date"`
	ExtractedEndDate   *time.Time     `json:"extracted_end_date" gorm:"index"`

	Vendor *Vendor `json:"vendor,omitempty" gorm:"foreignKey:VendorID"`
}
