package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/database"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Transaction(ctx context.Context, fn func(tx repository.TemplateRepository) error) error {
	return database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		return fn(&TemplateRepository{db: tx})
	})
}

func (r *TemplateRepository) Create(ctx context.Context, t *models.ContractTemplate) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) Update(ctx context.Context, t *models.ContractTemplate) error {
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, enterpriseID, id uuid.UUID) (*models.ContractTemplate, error) {
	var t models.ContractTemplate
	err := r.db.WithContext(ctx).
		Where("enterprise_id = ? AND id = ?", enterpriseID, id).
		First(&t).Error
	if err != nil {
		return nil, lookupErr(err, "template")
	}
	return &t, nil
}

func (r *TemplateRepository) List(ctx context.Context, enterpriseID uuid.UUID, filter repository.TemplateFilter) ([]models.ContractTemplate, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ContractTemplate{}).Where("enterprise_id = ?", enterpriseID)

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", likePattern(filter.Search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	var templates []models.ContractTemplate
	if err := paginate(query.Order("updated_at DESC"), filter.Page).Find(&templates).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, total, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, enterpriseID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("enterprise_id = ? AND id = ?", enterpriseID, id).
		Delete(&models.ContractTemplate{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("template %w", repository.ErrNotFound)
	}
	return nil
}

func (r *TemplateRepository) CreateVersion(ctx context.Context, v *models.TemplateVersion) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to create template version: %w", err)
	}
	return nil
}

func (r *TemplateRepository) ListVersions(ctx context.Context, templateID uuid.UUID) ([]models.TemplateVersion, error) {
	var versions []models.TemplateVersion
	err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("version DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list template versions: %w", err)
	}
	return versions, nil
}
