package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

func (r *VendorRepository) Create(ctx context.Context, v *models.Vendor) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

func (r *VendorRepository) Update(ctx context.Context, v *models.Vendor) error {
	if err := r.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("failed to update vendor: %w", err)
	}
	return nil
}

func (r *VendorRepository) GetByID(ctx context.Context, enterpriseID, id uuid.UUID) (*models.Vendor, error) {
	var v models.Vendor
	err := r.db.WithContext(ctx).
		Where("enterprise_id = ? AND id = ?", enterpriseID, id).
		First(&v).Error
	if err != nil {
		return nil, lookupErr(err, "vendor")
	}
	return &v, nil
}

func (r *VendorRepository) List(ctx context.Context, enterpriseID uuid.UUID, filter repository.VendorFilter) ([]models.Vendor, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Vendor{}).Where("enterprise_id = ?", enterpriseID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", likePattern(filter.Search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count vendors: %w", err)
	}

	var vendors []models.Vendor
	if err := paginate(query.Order("created_at DESC"), filter.Page).Find(&vendors).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list vendors: %w", err)
	}

	return vendors, total, nil
}
