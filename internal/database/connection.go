// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Database,
	}).Info("Database connection established")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

// Models lists every table owned by the service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Enterprise{},
		&models.User{},
		&models.Vendor{},
		&models.Contract{},
		&models.StripeCustomer{},
		&models.Subscription{},
		&models.Invoice{},
		&models.UsageRecord{},
		&models.WebhookEvent{},
		&models.Notification{},
		&models.ContractTemplate{},
		&models.TemplateVersion{},
		&models.AuditLog{},
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	// gen_random_uuid() is built in from postgres 13; pgcrypto covers older servers
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return fmt.Errorf("failed to create pgcrypto extension: %w", err)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Contract indexes
		"CREATE INDEX IF NOT EXISTS idx_contracts_enterprise_status ON contracts(enterprise_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_contracts_enterprise_created ON contracts(enterprise_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_contracts_enterprise_end_date ON contracts(enterprise_id, extracted_end_date)",
		"CREATE INDEX IF NOT EXISTS idx_contracts_vendor ON contracts(vendor_id, status)",

		// Vendor indexes
		"CREATE INDEX IF NOT EXISTS idx_vendors_enterprise_status ON vendors(enterprise_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_vendors_enterprise_category ON vendors(enterprise_id, category)",

		// Billing indexes
		"CREATE INDEX IF NOT EXISTS idx_subscriptions_enterprise_status ON subscriptions(enterprise_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_invoices_enterprise_created ON invoices(enterprise_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_processed ON webhook_events(processed_at)",

		// Notification indexes
		"CREATE INDEX IF NOT EXISTS idx_notifications_recipient_unread ON notifications(recipient_id, is_read) WHERE archived_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications(recipient_id, created_at DESC)",

		// Template indexes
		"CREATE INDEX IF NOT EXISTS idx_contract_templates_enterprise_active ON contract_templates(enterprise_id, is_active)",

		// Audit indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_enterprise_created ON audit_logs(enterprise_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",

		// Full-text search indexes
		"CREATE INDEX IF NOT EXISTS idx_contracts_search ON contracts USING GIN(to_tsvector('english', title || ' ' || coalesce(notes, '')))",
		"CREATE INDEX IF NOT EXISTS idx_vendors_search ON vendors USING GIN(to_tsvector('english', name))",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			// Continue with other indexes instead of failing completely
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}

	return nil
}

// SeedInitialData creates a demo tenant with one owner so a fresh database can be
// exercised with a locally minted token.
func SeedInitialData(db *gorm.DB, ownerEmail string) error {
	logrus.Info("Seeding initial data...")

	var count int64
	if err := db.Model(&models.Enterprise{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count enterprises: %w", err)
	}
	if count > 0 {
		logrus.Info("Enterprises already present, skipping seed")
		return nil
	}

	return WithTransaction(db, func(tx *gorm.DB) error {
		enterprise := &models.Enterprise{
			Name:   "Pactwise Demo",
			Domain: "demo.pactwise.io",
			Settings: models.JSONB{
				"default_currency": "usd",
				"timezone":         "UTC",
			},
		}
		if err := tx.Create(enterprise).Error; err != nil {
			return fmt.Errorf("failed to create demo enterprise: %w", err)
		}

		owner := &models.User{
			EnterpriseID: enterprise.ID,
			ExternalID:   "seed|owner",
			Email:        ownerEmail,
			Name:         "Demo Owner",
			Role:         models.UserRoleOwner,
			Status:       models.UserStatusActive,
		}
		if err := tx.Create(owner).Error; err != nil {
			return fmt.Errorf("failed to create demo owner: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"enterprise_id": enterprise.ID,
			"owner_id":      owner.ID,
		}).Info("Demo enterprise created")
		return nil
	})
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
