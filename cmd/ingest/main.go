package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/timmy/tally/internal/config"
	"github.com/timmy/tally/internal/logger"
	"github.com/timmy/tally/internal/notify"
	"github.com/timmy/tally/internal/repository"
	"github.com/timmy/tally/internal/service"
	"github.com/timmy/tally/internal/storage"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ingest",
		Short:        "Bulk-load election result files",
		Long:         "ingest runs upload jobs against the configured database without the HTTP server.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "path to config file (default ./configs/config.yaml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newSweepCmd())
	return cmd
}

// env is the wiring shared by subcommands that touch the database.
type env struct {
	cfg       *config.Config
	jobs      *repository.JobRepository
	results   *repository.ResultRepository
	uploads   *service.UploadService
	closeFunc func()
}

func (e *env) Close() {
	if e.closeFunc != nil {
		e.closeFunc()
	}
}

func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	var archive storage.ObjectStorage
	if cfg.Storage.ArchiveEnabled {
		if archive, err = storage.NewStorage(ctx, &cfg.Storage); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("init archive storage: %w", err)
		}
	}

	publishers, err := notify.New(ctx, cfg.Notify)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init notifiers: %w", err)
	}

	e := &env{
		cfg:     cfg,
		jobs:    repository.NewJobRepository(db),
		results: repository.NewResultRepository(db),
		closeFunc: func() {
			publishers.Close()
			sqlDB.Close()
		},
	}
	e.uploads = service.NewUploadService(e.jobs, e.results, publishers, archive, logger.GetDefault(), &service.UploadConfig{
		BatchSize:   cfg.Upload.BatchSize,
		MaxFileSize: cfg.Upload.MaxFileSize,
	})
	return e, nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	logger.SetDefaultLogger(logger.NewDefault())
	code := execute(newRootCmd())
	logger.Sync()
	os.Exit(code)
}
