// internal/models/template.go
package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type TemplateSection struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
	Required bool   `json:"required"`
}

// TemplateVariable.Type is informational; substitution never coerces values.
type TemplateVariable struct {
	Name         string `json:"name" validate:"required"`
	Label        string `json:"label,omitempty"`
	Type         string `json:"type,omitempty"`
	Required     bool   `json:"required"`
	DefaultValue string `json:"default_value,omitempty"`
	Description  string `json:"description,omitempty"`
}

type TemplateSections []TemplateSection

func (s TemplateSections) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *TemplateSections) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	return json.Unmarshal(scanBytes(value), s)
}

type TemplateVariables []TemplateVariable

func (v TemplateVariables) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func (v *TemplateVariables) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	return json.Unmarshal(scanBytes(value), v)
}

type ContractTemplate struct {
	BaseModel
	EnterpriseID uuid.UUID         `json:"enterprise_id" gorm:"type:uuid;not null;index"`
	Name         string            `json:"name" gorm:"size:255;not null"`
	Description  string            `json:"description" gorm:"type:text"`
	Category     string            `json:"category" gorm:"size:100;index"`
	Content      string            `json:"content" gorm:"type:text"`
	Sections     TemplateSections  `json:"sections" gorm:"type:jsonb"`
	Variables    TemplateVariables `json:"variables" gorm:"type:jsonb"`
	Tags         pq.StringArray    `json:"tags" gorm:"type:text[]"`
	Version      int               `json:"version" gorm:"not null;default:1"`
	IsActive     bool              `json:"is_active" gorm:"default:true"`
	CreatedBy    uuid.UUID         `json:"created_by" gorm:"type:uuid"`
	UpdatedBy    *uuid.UUID        `json:"updated_by" gorm:"type:uuid"`
}

// TemplateVersion is a snapshot of a template as it was before an update.
type TemplateVersion struct {
	BaseModel
	TemplateID  uuid.UUID         `json:"template_id" gorm:"type:uuid;not null;uniqueIndex:idx_template_version,priority:1"`
	Version     int               `json:"version" gorm:"not null;uniqueIndex:idx_template_version,priority:2"`
	Name        string            `json:"name" gorm:"size:255"`
	Description string            `json:"description" gorm:"type:text"`
	Content     string            `json:"content" gorm:"type:text"`
	Sections    TemplateSections  `json:"sections" gorm:"type:jsonb"`
	Variables   TemplateVariables `json:"variables" gorm:"type:jsonb"`
	ChangedBy   uuid.UUID         `json:"changed_by" gorm:"type:uuid"`
	ChangeNote  string            `json:"change_note,omitempty" gorm:"type:text"`
}
