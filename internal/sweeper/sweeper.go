// Package sweeper cleans up after jobs the process did not see to the end:
// job records left non-terminal by a crash, and staged files nobody owns.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/timmy/tally/internal/config"
	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/logger"
	"github.com/timmy/tally/internal/repository"
)

// InterruptedMessage is the job-level error set on recovered jobs.
const InterruptedMessage = "interrupted before completion"

// cronParser accepts 5-field expressions, an optional leading seconds field
// and descriptors such as "@every 15m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// JobStore is the part of the job record store the sweeper needs.
type JobStore interface {
	ListByStatus(ctx context.Context, statuses ...domain.JobStatus) ([]domain.BulkUploadJob, error)
	Save(ctx context.Context, job *domain.BulkUploadJob) error
}

// InFlightChecker reports whether a running job still owns a staged file.
type InFlightChecker interface {
	InFlight(filePath string) bool
}

// Sweeper recovers interrupted jobs and removes stale staged files.
type Sweeper struct {
	jobs       JobStore
	inflight   InFlightChecker
	stagingDir string
	maxAge     time.Duration
	schedule   string
	now        func() time.Time

	cron *cron.Cron
}

// New creates a sweeper over the staging directory.
func New(cfg config.SweeperConfig, stagingDir string, jobs JobStore, inflight InFlightChecker) *Sweeper {
	return &Sweeper{
		jobs:       jobs,
		inflight:   inflight,
		stagingDir: stagingDir,
		maxAge:     cfg.MaxAge,
		schedule:   cfg.Schedule,
		now:        time.Now,
	}
}

// RecoverInterrupted fails every job left in uploaded or processing. Call it
// at startup, before any job is started. A job that another process is still
// running is failed too; that process stops at its next checkpoint. Jobs that
// reach a terminal state between listing and saving are skipped.
// Returns:
//   - int: number of jobs marked failed.
//   - error: non-nil if listing or saving fails.
func (s *Sweeper) RecoverInterrupted(ctx context.Context) (int, error) {
	jobs, err := s.jobs.ListByStatus(ctx, domain.JobStatusUploaded, domain.JobStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to list interrupted jobs: %w", err)
	}

	recovered := 0
	for i := range jobs {
		job := &jobs[i]
		completedAt := s.now().UTC()
		job.Status = domain.JobStatusFailed
		job.CompletedAt = &completedAt
		job.ValidationErrors = []domain.RowError{{
			RowNumber: 0,
			Errors:    []domain.FieldError{{Field: "general", Message: InterruptedMessage}},
		}}
		if err := s.jobs.Save(ctx, job); err != nil {
			if errors.Is(err, repository.ErrJobClosed) {
				continue
			}
			return recovered, fmt.Errorf("failed to save job %s: %w", job.ID, err)
		}
		recovered++
		logger.FromContext(ctx).WithField(logger.FieldUploadID, job.ID).Warn("Marked interrupted job as failed")
	}
	return recovered, nil
}

// SweepStaging removes staged files older than the configured max age that
// no running job owns.
// Returns:
//   - int: number of files removed.
//   - error: non-nil if the staging directory cannot be read.
func (s *Sweeper) SweepStaging(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.stagingDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read staging dir: %w", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if s.inflight != nil && s.inflight.InFlight(path) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.FromContext(ctx).WithError(err).WithField("path", path).Warn("Failed to remove stale staged file")
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.With(logger.Fields{"dir": s.stagingDir}).WithCount(removed).Info(ctx, "Removed stale staged files")
	}
	return removed, nil
}

// Start schedules SweepStaging on the configured cron expression.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cron != nil {
		return errors.New("sweeper already started")
	}
	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.SweepStaging(ctx); err != nil {
			logger.FromContext(ctx).WithError(err).Error("Staging sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	logger.FromContext(ctx).WithField("schedule", s.schedule).Info("Staging sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
