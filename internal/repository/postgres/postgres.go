// Package postgres implements the repository capabilities on gorm.
package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/repository"
)

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		Enterprises:   NewEnterpriseRepository(db),
		Users:         NewUserRepository(db),
		Contracts:     NewContractRepository(db),
		Vendors:       NewVendorRepository(db),
		Billing:       NewBillingRepository(db),
		Usage:         NewUsageRepository(db),
		Notifications: NewNotificationRepository(db),
		Templates:     NewTemplateRepository(db),
		AuditLogs:     NewAuditLogRepository(db),
	}
}

// lookupErr maps gorm's not-found onto the repository sentinel.
func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", what, repository.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func paginate(query *gorm.DB, page repository.Page) *gorm.DB {
	if page.Limit <= 0 {
		return query
	}
	return query.Offset(page.Offset()).Limit(page.Limit)
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
