// internal/services/template_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/security"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

type TemplateService struct {
	templates repository.TemplateRepository
}

type CreateTemplateRequest struct {
	Name        string                    `json:"name" validate:"required,min=1,max=255"`
	Description string                    `json:"description,omitempty"`
	Category    string                    `json:"category,omitempty" validate:"max=100"`
	Content     string                    `json:"content"`
	Sections    []models.TemplateSection  `json:"sections,omitempty" validate:"dive"`
	Variables   []models.TemplateVariable `json:"variables,omitempty" validate:"dive"`
	Tags        []string                  `json:"tags,omitempty"`
	IsActive    *bool                     `json:"is_active,omitempty"`
}

type UpdateTemplateRequest struct {
	Name        *string                    `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string                    `json:"description,omitempty"`
	Category    *string                    `json:"category,omitempty" validate:"omitempty,max=100"`
	Content     *string                    `json:"content,omitempty"`
	Sections    *[]models.TemplateSection  `json:"sections,omitempty"`
	Variables   *[]models.TemplateVariable `json:"variables,omitempty"`
	Tags        *[]string                  `json:"tags,omitempty"`
	IsActive    *bool                      `json:"is_active,omitempty"`
	ChangeNote  string                     `json:"change_note,omitempty" validate:"max=1000"`
}

type TemplateListRequest struct {
	Category   string `form:"category"`
	ActiveOnly bool   `form:"active_only"`
	Search     string `form:"search"`
}

type GenerateRequest struct {
	Values map[string]string `json:"values"`
}

type GeneratedSection struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
	Required bool   `json:"required"`
}

type GeneratedContract struct {
	TemplateID       uuid.UUID          `json:"template_id"`
	Version          int                `json:"version"`
	Content          string             `json:"content"`
	Sections         []GeneratedSection `json:"sections"`
	MissingVariables []string           `json:"missing_variables"`
}

func NewTemplateService(repos *repository.Repositories) *TemplateService {
	return &TemplateService{templates: repos.Templates}
}

func (s *TemplateService) Create(ctx context.Context, sec security.Context, req *CreateTemplateRequest) (*models.ContractTemplate, error) {
	if err := sec.RequireRole(security.Managers...); err != nil {
		return nil, err
	}
	if err := validateVariables(req.Variables); err != nil {
		return nil, err
	}

	tmpl := &models.ContractTemplate{
		EnterpriseID: sec.EnterpriseID,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Category:     req.Category,
		Content:      req.Content,
		Sections:     req.Sections,
		Variables:    req.Variables,
		Tags:         req.Tags,
		Version:      1,
		IsActive:     true,
		CreatedBy:    sec.UserID,
	}
	if req.IsActive != nil {
		tmpl.IsActive = *req.IsActive
	}

	if err := s.templates.Create(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"template_id":   tmpl.ID,
		"enterprise_id": sec.EnterpriseID,
	}).Info("Contract template created")
	return tmpl, nil
}

func (s *TemplateService) Get(ctx context.Context, sec security.Context, id uuid.UUID) (*models.ContractTemplate, error) {
	return s.templates.GetByID(ctx, sec.EnterpriseID, id)
}

func (s *TemplateService) List(ctx context.Context, sec security.Context, req TemplateListRequest, page repository.Page) ([]models.ContractTemplate, int64, error) {
	templates, total, err := s.templates.List(ctx, sec.EnterpriseID, repository.TemplateFilter{
		Page:       page,
		Category:   req.Category,
		ActiveOnly: req.ActiveOnly,
		Search:     req.Search,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, total, nil
}

// Update snapshots the template as it was into a version row and bumps the
// version, both in one transaction.
func (s *TemplateService) Update(ctx context.Context, sec security.Context, id uuid.UUID, req *UpdateTemplateRequest) (*models.ContractTemplate, error) {
	if err := sec.RequireRole(security.Managers...); err != nil {
		return nil, err
	}
	if req.Variables != nil {
		if err := validateVariables(*req.Variables); err != nil {
			return nil, err
		}
	}

	var updated *models.ContractTemplate
	err := s.templates.Transaction(ctx, func(tx repository.TemplateRepository) error {
		tmpl, err := tx.GetByID(ctx, sec.EnterpriseID, id)
		if err != nil {
			return err
		}

		snapshot := &models.TemplateVersion{
			TemplateID:  tmpl.ID,
			Version:     tmpl.Version,
			Name:        tmpl.Name,
			Description: tmpl.Description,
			Content:     tmpl.Content,
			Sections:    tmpl.Sections,
			Variables:   tmpl.Variables,
			ChangedBy:   sec.UserID,
			ChangeNote:  req.ChangeNote,
		}
		if err := tx.CreateVersion(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to snapshot template: %w", err)
		}

		applyTemplateUpdate(tmpl, req)
		tmpl.Version++
		tmpl.UpdatedBy = &sec.UserID

		if err := tx.Update(ctx, tmpl); err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}
		updated = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"template_id": updated.ID,
		"version":     updated.Version,
	}).Info("Contract template updated")
	return updated, nil
}

func applyTemplateUpdate(tmpl *models.ContractTemplate, req *UpdateTemplateRequest) {
	if req.Name != nil {
		tmpl.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		tmpl.Description = *req.Description
	}
	if req.Category != nil {
		tmpl.Category = *req.Category
	}
	if req.Content != nil {
		tmpl.Content = *req.Content
	}
	if req.Sections != nil {
		tmpl.Sections = *req.Sections
	}
	if req.Variables != nil {
		tmpl.Variables = *req.Variables
	}
	if req.Tags != nil {
		tmpl.Tags = *req.Tags
	}
	if req.IsActive != nil {
		tmpl.IsActive = *req.IsActive
	}
}

func (s *TemplateService) Delete(ctx context.Context, sec security.Context, id uuid.UUID) error {
	if err := sec.RequireRole(security.Admins...); err != nil {
		return err
	}
	if err := s.templates.Delete(ctx, sec.EnterpriseID, id); err != nil {
		return err
	}

	logrus.WithField("template_id", id).Info("Contract template deleted")
	return nil
}

func (s *TemplateService) ListVersions(ctx context.Context, sec security.Context, id uuid.UUID) ([]models.TemplateVersion, error) {
	if _, err := s.templates.GetByID(ctx, sec.EnterpriseID, id); err != nil {
		return nil, err
	}
	versions, err := s.templates.ListVersions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list template versions: %w", err)
	}
	return versions, nil
}

// Generate fills the template's placeholders with values, falling back to the
// declared defaults.
func (s *TemplateService) Generate(ctx context.Context, sec security.Context, id uuid.UUID, values map[string]string) (*GeneratedContract, error) {
	tmpl, err := s.templates.GetByID(ctx, sec.EnterpriseID, id)
	if err != nil {
		return nil, err
	}

	resolved := resolveValues(tmpl.Variables, values)

	sections := make([]GeneratedSection, 0, len(tmpl.Sections))
	for _, section := range tmpl.Sections {
		sections = append(sections, GeneratedSection{
			ID:       section.ID,
			Title:    section.Title,
			Content:  SubstituteVariables(section.Content, resolved),
			Order:    section.Order,
			Required: section.Required,
		})
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })

	return &GeneratedContract{
		TemplateID:       tmpl.ID,
		Version:          tmpl.Version,
		Content:          SubstituteVariables(tmpl.Content, resolved),
		Sections:         sections,
		MissingVariables: MissingVariables(tmpl.Variables, values),
	}, nil
}

// SubstituteVariables replaces each {{name}} whose name has a value. Names are
// matched exactly; unknown placeholders stay as written and substituted text
// is not scanned again.
func SubstituteVariables(text string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := token[2 : len(token)-2]
		if value, ok := values[name]; ok {
			return value
		}
		return token
	})
}

// MissingVariables lists required variables with neither a value nor a default.
func MissingVariables(variables []models.TemplateVariable, values map[string]string) []string {
	missing := []string{}
	for _, v := range variables {
		if !v.Required {
			continue
		}
		if values[v.Name] == "" && v.DefaultValue == "" {
			missing = append(missing, v.Name)
		}
	}
	return missing
}

func resolveValues(variables []models.TemplateVariable, values map[string]string) map[string]string {
	resolved := make(map[string]string, len(values)+len(variables))
	for _, v := range variables {
		if v.DefaultValue != "" {
			resolved[v.Name] = v.DefaultValue
		}
	}
	// an explicit "" still replaces the token; defaults only fill absent keys
	for name, value := range values {
		resolved[name] = value
	}
	return resolved
}

func validateVariables(variables []models.TemplateVariable) error {
	seen := make(map[string]bool, len(variables))
	for _, v := range variables {
		if v.Name == "" {
			return invalidInput("template variable name is required")
		}
		if strings.ContainsAny(v.Name, "{}") {
			return invalidInput("template variable %q may not contain braces", v.Name)
		}
		if seen[v.Name] {
			return invalidInput("template variable %q is declared twice", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}
