package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) Create(ctx context.Context, c *models.Contract) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

func (r *ContractRepository) Update(ctx context.Context, c *models.Contract) error {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return nil
}

func (r *ContractRepository) GetByID(ctx context.Context, enterpriseID, id uuid.UUID) (*models.Contract, error) {
	var c models.Contract
	err := r.db.WithContext(ctx).
		Preload("Vendor").
		Where("enterprise_id = ? AND id = ?", enterpriseID, id).
		First(&c).Error
	if err != nil {
		return nil, lookupErr(err, "contract")
	}
	return &c, nil
}

func (r *ContractRepository) List(ctx context.Context, enterpriseID uuid.UUID, filter repository.ContractFilter) ([]models.Contract, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Contract{}).Where("enterprise_id = ?", enterpriseID)

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.ContractType != "" {
		query = query.Where("contract_type = ?", filter.ContractType)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(title) LIKE ?", likePattern(filter.Search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count contracts: %w", err)
	}

	var contracts []models.Contract
	err := paginate(query.Order("created_at DESC"), filter.Page).Find(&contracts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contracts: %w", err)
	}

	return contracts, total, nil
}

func (r *ContractRepository) ListActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.WithContext(ctx).
		Where("status = ? AND extracted_end_date IS NOT NULL AND extracted_end_date < ?", models.ContractStatusActive, cutoff).
		Order("extracted_end_date ASC").
		Find(&contracts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ended contracts: %w", err)
	}
	return contracts, nil
}
