// cmd/pactctl/commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/pactwise/pactwise-backend/internal/cache"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/database"
	"github.com/pactwise/pactwise-backend/internal/jobs"
	"github.com/pactwise/pactwise-backend/internal/logging"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

var errPostgresRequired = errors.New("this command needs DB_DRIVER=postgres")

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Environment)
	return cfg, nil
}

// openDatabase connects without migrating and fails for the memory driver.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Driver != "postgres" {
		return nil, errPostgresRequired
	}
	return database.Initialize(cfg.Database)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.RunMigrations(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var ownerEmail string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo enterprise with one owner on an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.SeedInitialData(db, ownerEmail); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerEmail, "owner-email", "owner@demo.pactwise.io", "email of the seeded owner")
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List or run maintenance jobs",
	}
	cmd.AddCommand(jobsListCmd(), jobsRunCmd())
	return cmd
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the maintenance jobs and their schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			// listing never runs a job, so no service is needed
			registry := jobs.MaintenanceRegistry(nil)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSCHEDULE\tDESCRIPTION")
			for _, job := range registry.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", job.Name, job.Schedule, job.Description)
			}
			return w.Flush()
		},
	}
}

func jobsRunCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run one maintenance job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			repos, db, err := database.OpenRepositories(cfg, false)
			if err != nil {
				return err
			}
			if db != nil {
				defer database.Close(db)
			}

			maintenance := services.NewMaintenanceService(repos,
				services.NewNotificationService(repos, cfg),
				services.NewDashboardService(repos, cache.Noop{}, cfg), cfg)
			registry := jobs.MaintenanceRegistry(maintenance)
			if _, ok := registry.Get(args[0]); !ok {
				return fmt.Errorf("unknown job %q, see pactctl jobs list", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			affected, err := registry.Run(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows affected\n", args[0], affected)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "abort the job after this long")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID       string
		enterpriseID string
		role         string
		email        string
		ttl          time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Environment == "production" {
				return errors.New("refusing to mint tokens in production")
			}

			uid, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			eid, err := uuid.Parse(enterpriseID)
			if err != nil {
				return fmt.Errorf("invalid --enterprise: %w", err)
			}
			if !models.UserRole(role).Valid() {
				return fmt.Errorf("invalid --role %q", role)
			}

			utils.SetJWTSecret(cfg.JWT.SecretKey)
			utils.SetJWTIssuer(cfg.JWT.Issuer)
			token, err := utils.GenerateJWT(uid, eid, role, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&enterpriseID, "enterprise", "", "enterprise id")
	cmd.Flags().StringVar(&role, "role", string(models.UserRoleOwner), "owner, admin, manager, user or viewer")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("enterprise")
	return cmd
}
