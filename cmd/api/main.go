package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/tally/internal/api"
	"github.com/timmy/tally/internal/config"
	"github.com/timmy/tally/internal/logger"
	"github.com/timmy/tally/internal/notify"
	"github.com/timmy/tally/internal/repository"
	"github.com/timmy/tally/internal/service"
	"github.com/timmy/tally/internal/storage"
	"github.com/timmy/tally/internal/sweeper"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	jobRepo := repository.NewJobRepository(db)
	resultRepo := repository.NewResultRepository(db)

	if err := os.MkdirAll(cfg.Upload.StagingDir, 0o750); err != nil {
		appLogger.WithError(err).Fatal("Failed to create staging directory")
	}

	// Optional source file archive (local dir, R2, S3 or S3-compatible)
	var archive storage.ObjectStorage
	if cfg.Storage.ArchiveEnabled {
		archive, err = storage.NewStorage(ctx, &cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize archive storage")
		}
		appLogger.WithField("type", cfg.Storage.Type).Info("Source file archive enabled")
	}

	publishers, err := notify.New(ctx, cfg.Notify)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize notifiers")
	}
	defer publishers.Close()

	uploadService := service.NewUploadService(
		jobRepo,
		resultRepo,
		publishers,
		archive,
		appLogger,
		&service.UploadConfig{
			BatchSize:   cfg.Upload.BatchSize,
			MaxFileSize: cfg.Upload.MaxFileSize,
		},
	)

	// Jobs left open by a previous process will never finish
	sw := sweeper.New(cfg.Sweeper, cfg.Upload.StagingDir, jobRepo, uploadService)
	if n, err := sw.RecoverInterrupted(ctx); err != nil {
		appLogger.WithError(err).Error("Failed to recover interrupted jobs")
	} else if n > 0 {
		appLogger.WithField(logger.FieldCount, n).Warn("Recovered interrupted jobs")
	}
	if cfg.Sweeper.Enabled {
		if err := sw.Start(logger.SetComponent(ctx, "sweeper")); err != nil {
			appLogger.WithError(err).Fatal("Failed to start sweeper")
		}
	}

	router := api.SetupRouter(uploadService, sqlDB, cfg, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	sw.Stop(shutdownCtx)

	// Running jobs hold their rows in memory; give them the rest of the budget.
	if err := uploadService.Wait(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Shutdown timeout reached with jobs still running")
	}

	appLogger.Info("Server exited")
}
