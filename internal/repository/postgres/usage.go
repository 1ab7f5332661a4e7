package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/database"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) SumSince(ctx context.Context, enterpriseID uuid.UUID, metric string, since time.Time) (int64, error) {
	total, err := sumSince(r.db.WithContext(ctx), enterpriseID, metric, since)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}

// RecordWithinLimit takes a transaction-scoped advisory lock keyed on the
// tenant so concurrent recorders for one tenant run the check and the append
// one at a time. No enterprise row has to exist.
func (r *UsageRepository) RecordWithinLimit(ctx context.Context, rec *models.UsageRecord, since time.Time, limit int64) (int64, error) {
	var used int64

	err := database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", usageLockKey(rec.EnterpriseID)).Error; err != nil {
			return fmt.Errorf("failed to lock tenant usage: %w", err)
		}

		current, err := sumSince(tx, rec.EnterpriseID, rec.Metric, since)
		if err != nil {
			return err
		}

		if limit != repository.Unlimited && current+rec.Quantity > limit {
			used = current
			return repository.ErrLimitExceeded
		}

		if rec.RecordedAt.IsZero() {
			rec.RecordedAt = time.Now().UTC()
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		used = current + rec.Quantity
		return nil
	})

	if err != nil {
		if errors.Is(err, repository.ErrLimitExceeded) {
			return used, err
		}
		return 0, fmt.Errorf("failed to record usage: %w", err)
	}
	return used, nil
}

func usageLockKey(enterpriseID uuid.UUID) string {
	return "usage:" + enterpriseID.String()
}

func sumSince(db *gorm.DB, enterpriseID uuid.UUID, metric string, since time.Time) (int64, error) {
	var total int64
	err := db.Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("enterprise_id = ? AND metric = ? AND recorded_at >= ?", enterpriseID, metric, since).
		Scan(&total).Error
	return total, err
}
