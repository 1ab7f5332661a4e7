// internal/database/repositories.go
package database

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/repository/memory"
	"github.com/pactwise/pactwise-backend/internal/repository/postgres"
)

// OpenRepositories returns the repositories for the configured driver. With
// postgres it connects and migrates; db is nil for the memory driver.
func OpenRepositories(cfg *config.Config, migrate bool) (*repository.Repositories, *gorm.DB, error) {
	if cfg.Database.Driver == "memory" {
		logrus.Warn("Using in-memory repositories, data is lost on exit")
		return memory.NewRepositories(), nil, nil
	}

	db, err := Initialize(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	if migrate {
		if err := RunMigrations(db); err != nil {
			Close(db)
			return nil, nil, err
		}
	}

	return postgres.NewRepositories(db), db, nil
}
