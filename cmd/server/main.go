// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/cache"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/database"
	"github.com/pactwise/pactwise-backend/internal/i18n"
	"github.com/pactwise/pactwise-backend/internal/jobs"
	"github.com/pactwise/pactwise-backend/internal/logging"
	"github.com/pactwise/pactwise-backend/internal/router"
	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Environment)

	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	// Initialize database and run migrations
	repos, db, err := database.OpenRepositories(cfg, true)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	if db != nil {
		defer database.Close(db)
	}

	dashboardCache := cache.New(context.Background(), cfg.Redis)
	if closer, ok := dashboardCache.(io.Closer); ok {
		defer closer.Close()
	}

	svc, err := services.NewContainer(repos, dashboardCache, services.NewStripeGateway(), cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize services")
	}

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(jobs.MaintenanceRegistry(svc.Maintenance))
		if err := scheduler.Schedule(); err != nil {
			logrus.WithError(err).Fatal("Failed to schedule jobs")
		}
		scheduler.Start()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r, releaseRouter := router.Initialize(svc, repos, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	releaseRouter()
	if scheduler != nil {
		scheduler.Stop(ctx)
	}

	logrus.Info("Server exited")
}
