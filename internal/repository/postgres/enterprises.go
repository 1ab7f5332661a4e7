package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/models"
)

type EnterpriseRepository struct {
	db *gorm.DB
}

func NewEnterpriseRepository(db *gorm.DB) *EnterpriseRepository {
	return &EnterpriseRepository{db: db}
}

func (r *EnterpriseRepository) Create(ctx context.Context, e *models.Enterprise) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create enterprise: %w", err)
	}
	return nil
}

func (r *EnterpriseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Enterprise, error) {
	var e models.Enterprise
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, lookupErr(err, "enterprise")
	}
	return &e, nil
}

func (r *EnterpriseRepository) List(ctx context.Context) ([]models.Enterprise, error) {
	var out []models.Enterprise
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list enterprises: %w", err)
	}
	return out, nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, enterpriseID, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Where("enterprise_id = ? AND id = ?", enterpriseID, id).
		First(&u).Error
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	return &u, nil
}

func (r *UserRepository) ListByRoles(ctx context.Context, enterpriseID uuid.UUID, roles ...models.UserRole) ([]models.User, error) {
	query := r.db.WithContext(ctx).
		Where("enterprise_id = ? AND status = ?", enterpriseID, models.UserStatusActive)
	if len(roles) > 0 {
		query = query.Where("role IN ?", roles)
	}

	var users []models.User
	if err := query.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
