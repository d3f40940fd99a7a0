package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/timmy/tally/internal/config"
	"github.com/timmy/tally/internal/domain"
	"github.com/timmy/tally/internal/logger"
	"github.com/timmy/tally/internal/notify"
	"github.com/timmy/tally/internal/repository"
	"github.com/timmy/tally/internal/schema"
	"github.com/timmy/tally/internal/storage"
	"github.com/timmy/tally/internal/tabular"
	"gorm.io/gorm"
)

var (
	// ErrInvalidInput marks a request rejected before any job was created.
	ErrInvalidInput = errors.New("invalid input")

	// ErrJobNotFound is returned when no job has the requested ID.
	ErrJobNotFound = errors.New("upload job not found")
)

// FieldGeneral tags row and job errors that are not tied to one column.
const FieldGeneral = "general"

// JobStore persists job records. repository.JobRepository implements it.
type JobStore interface {
	Create(ctx context.Context, job *domain.BulkUploadJob) error
	Save(ctx context.Context, job *domain.BulkUploadJob) error
	GetByID(ctx context.Context, id string) (*domain.BulkUploadJob, error)
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]domain.BulkUploadJob, int64, error)
}

// UploadConfig holds tunables of the upload service.
type UploadConfig struct {
	BatchSize   int
	MaxFileSize int64
}

// UploadService owns the lifecycle of bulk upload jobs: input checks, the
// detached processing task, checkpoints and finalization.
type UploadService struct {
	jobs       JobStore
	reconciler *Reconciler
	publisher  notify.Publisher
	archive    storage.ObjectStorage
	logger     *logger.Logger

	batchSize   int
	maxFileSize int64

	wg       sync.WaitGroup
	inflight sync.Map // staged file path -> job ID
}

// NewUploadService creates a new upload service.
// Parameters:
//   - jobs: job record store.
//   - results: result store the reconciler writes to.
//   - publisher: job event publisher; nil disables events.
//   - archive: source file archive; nil disables archiving.
//   - log: fallback logger.
//   - cfg: batch size and upload limits.
// Returns:
//   - *UploadService: service ready to accept jobs.
func NewUploadService(
	jobs JobStore,
	results ResultStore,
	publisher notify.Publisher,
	archive storage.ObjectStorage,
	log *logger.Logger,
	cfg *UploadConfig,
) *UploadService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	return &UploadService{
		jobs:        jobs,
		reconciler:  NewReconciler(results),
		publisher:   publisher,
		archive:     archive,
		logger:      log,
		batchSize:   batchSize,
		maxFileSize: cfg.MaxFileSize,
	}
}

// log returns a logger from context if available, otherwise returns the service logger
func (s *UploadService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != logger.GetDefault() {
		return l
	}
	return s.logger
}

// CreateJobRequest carries the raw upload request fields.
type CreateJobRequest struct {
	OwnerID      string
	RecordType   string
	ElectionYear string
	FileName     string
	FileSize     int64
	Options      domain.JobOptions
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// CreateJob checks the request and records a job in state uploaded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: raw request fields.
// Returns:
//   - *domain.BulkUploadJob: the created job.
//   - error: wraps ErrInvalidInput when the request is rejected; no job is created then.
func (s *UploadService) CreateJob(ctx context.Context, req CreateJobRequest) (*domain.BulkUploadJob, error) {
	rt, ok := domain.ParseRecordType(strings.ToLower(strings.TrimSpace(req.RecordType)))
	if !ok {
		return nil, invalid("record_type must be %q or %q", domain.RecordTypeConstituency, domain.RecordTypeCenter)
	}

	year, err := strconv.Atoi(strings.TrimSpace(req.ElectionYear))
	if err != nil || year < domain.MinElectionYear || year > domain.MaxElectionYear {
		return nil, invalid("election_year must be a year between %d and %d", domain.MinElectionYear, domain.MaxElectionYear)
	}

	if _, ok := tabular.FormatFromPath(req.FileName); !ok {
		return nil, invalid("file must be .csv or .xlsx")
	}
	if req.FileSize <= 0 {
		return nil, invalid("file is empty")
	}
	if s.maxFileSize > 0 && req.FileSize > s.maxFileSize {
		return nil, invalid("file is %d bytes, limit is %d", req.FileSize, s.maxFileSize)
	}

	owner := req.OwnerID
	if owner == "" {
		owner = "anonymous"
	}

	job := &domain.BulkUploadJob{
		OwnerID:        owner,
		RecordType:     rt,
		ElectionYear:   year,
		SourceFileName: filepath.Base(req.FileName),
		SourceFileSize: req.FileSize,
		Status:         domain.JobStatusUploaded,
		Options:        req.Options,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldUploadID:   job.ID,
		logger.FieldRecordType: job.RecordType,
		logger.FieldSize:       job.SourceFileSize,
	}).Info("Upload job created")

	return job, nil
}

// Task is the handle of a detached job run.
type Task struct {
	JobID string
	done  chan struct{}
	err   error
}

// Done is closed when the run has finished, whatever its outcome.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the fatal error of the run, if any. Valid after Done is closed.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

// StartJob runs the job in its own goroutine and returns immediately.
// Outcomes surface only through the job record; the returned Task is for
// callers that want to wait. ctx contributes logging fields only.
func (s *UploadService) StartJob(ctx context.Context, jobID, filePath string) *Task {
	task := &Task{JobID: jobID, done: make(chan struct{})}
	ctx = context.WithoutCancel(logger.SetUploadID(ctx, jobID))

	s.wg.Add(1)
	s.inflight.Store(filePath, jobID)
	go func() {
		defer s.wg.Done()
		defer close(task.done)
		defer s.inflight.Delete(filePath)

		job, err := s.jobs.GetByID(ctx, jobID)
		if err != nil {
			s.log(ctx).WithError(err).Error("Failed to load upload job")
			removeFile(ctx, filePath)
			task.err = err
			return
		}
		task.err = s.Run(ctx, job, filePath)
	}()
	return task
}

// Wait blocks until every started job has finished or ctx is done.
func (s *UploadService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports whether a running job owns the staged file.
func (s *UploadService) InFlight(filePath string) bool {
	_, ok := s.inflight.Load(filePath)
	return ok
}

// Run processes a job in state uploaded to completion.
//
// Rows are visited one at a time in file order. A row that fails validation,
// transformation or reconciliation is recorded and the loop continues. After
// every batch the progress counters are checkpointed. Anything escaping the
// loop (parse failure, checkpoint failure, panic) marks the job failed with a
// single job-level error, unless the stored job was already closed, in which
// case the run stops and leaves it as it is. The staged file is archived when
// configured and always removed.
// Parameters:
//   - ctx: context for store calls and logging.
//   - job: job in state uploaded; mutated in place.
//   - filePath: staged source file.
// Returns:
//   - error: the fatal error, nil when the job completed.
func (s *UploadService) Run(ctx context.Context, job *domain.BulkUploadJob, filePath string) (err error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldUploadID:   job.ID,
		logger.FieldRecordType: job.RecordType,
	})

	if job.Status != domain.JobStatusUploaded {
		removeFile(ctx, filePath)
		return fmt.Errorf("job %s is %s, only uploaded jobs can run", job.ID, job.Status)
	}

	start := time.Now()
	defer s.cleanup(ctx, job, filePath)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during processing: %v", r)
		}
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrJobClosed):
			// Closed by someone else; their outcome stands.
			s.log(ctx).WithError(err).Warn("Upload job closed while running, abandoning")
		default:
			s.fail(ctx, job, start, err)
		}
	}()

	return s.process(ctx, job, filePath, start)
}

func (s *UploadService) process(ctx context.Context, job *domain.BulkUploadJob, filePath string, start time.Time) error {
	sch, err := schema.For(job.RecordType)
	if err != nil {
		return err
	}

	startedAt := start.UTC()
	job.Status = domain.JobStatusProcessing
	job.StartedAt = &startedAt
	if err := s.jobs.Save(ctx, job); err != nil {
		return err
	}

	parser, err := tabular.ForPath(filePath)
	if err != nil {
		return err
	}
	rows, err := parser.Parse(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to parse file: %w", err)
	}

	job.TotalRows = len(rows)
	if err := s.jobs.Save(ctx, job); err != nil {
		return err
	}
	s.log(ctx).WithField(logger.FieldCount, len(rows)).Info("Parsed upload file")

	pass := s.reconciler.NewPass(job.Options)
	rowErrors := make([]domain.RowError, 0)
	for from := 0; from < len(rows); from += s.batchSize {
		to := from + s.batchSize
		if to > len(rows) {
			to = len(rows)
		}

		for _, row := range rows[from:to] {
			if rowErr := s.processRow(ctx, job, sch, pass, row); rowErr != nil {
				job.Progress.Failed++
				rowErrors = append(rowErrors, *rowErr)
			}
		}

		job.Progress.Processed += to - from
		job.ValidationErrors = rowErrors
		if err := s.jobs.Save(ctx, job); err != nil {
			return fmt.Errorf("failed to checkpoint progress: %w", err)
		}
		s.publish(ctx, notify.EventProgress, job)
	}

	completedAt := time.Now().UTC()
	elapsed := time.Since(start).Seconds()
	job.Status = domain.JobStatusCompleted
	job.ValidationErrors = rowErrors
	job.ProcessingTimeSeconds = &elapsed
	job.CompletedAt = &completedAt
	if err := s.jobs.Save(ctx, job); err != nil {
		return err
	}

	logger.With(logger.Fields{
		"successful": job.Progress.Successful,
		"updated":    job.Progress.Updated,
		"duplicates": job.Progress.Duplicates,
		"failed":     job.Progress.Failed,
	}).WithCount(job.TotalRows).WithDuration(start).Info(ctx, "Upload job completed")

	s.publish(ctx, notify.EventCompleted, job)
	return nil
}

// processRow validates, transforms and reconciles one row, updating the
// outcome counters. It returns the row's error entry when the row fails.
func (s *UploadService) processRow(ctx context.Context, job *domain.BulkUploadJob, sch schema.Schema, pass *Pass, row tabular.Row) (rowErr *domain.RowError) {
	if errs := sch.Validate(row); len(errs) > 0 {
		return &domain.RowError{
			RowNumber:   row.Number,
			BusinessKey: sch.BusinessKey(row),
			Errors:      errs,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			rowErr = generalRowError(sch, row, fmt.Sprintf("unexpected error: %v", r))
		}
		if rowErr != nil {
			logger.With(logger.Fields{"error": rowErr.Errors[0].Message}).WithRow(row.Number).Warn(ctx, "Row failed")
		}
	}()

	rec, err := sch.Transform(row)
	if err != nil {
		return generalRowError(sch, row, err.Error())
	}
	rec.SetProvenance(job.ID, job.OwnerID)

	outcome, err := pass.Reconcile(ctx, rec)
	if err != nil {
		return generalRowError(sch, row, persistenceMessage(err))
	}

	switch outcome {
	case OutcomeInserted:
		job.Progress.Successful++
	case OutcomeUpdated:
		job.Progress.Updated++
	case OutcomeSkipped:
		job.Progress.Duplicates++
	}
	return nil
}

func generalRowError(sch schema.Schema, row tabular.Row, message string) *domain.RowError {
	return &domain.RowError{
		RowNumber:   row.Number,
		BusinessKey: sch.BusinessKey(row),
		Errors:      []domain.FieldError{{Field: FieldGeneral, Message: message}},
	}
}

// persistenceMessage phrases a store error for the error listing.
func persistenceMessage(err error) string {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "a record with this key already exists"
	}
	return err.Error()
}

// fail records a fatal error on the job. The job's own error list is replaced
// by a single job-level entry.
func (s *UploadService) fail(ctx context.Context, job *domain.BulkUploadJob, start time.Time, cause error) {
	completedAt := time.Now().UTC()
	elapsed := time.Since(start).Seconds()

	job.Status = domain.JobStatusFailed
	job.ValidationErrors = []domain.RowError{{
		RowNumber: 0,
		Errors:    []domain.FieldError{{Field: FieldGeneral, Message: cause.Error()}},
	}}
	job.ProcessingTimeSeconds = &elapsed
	job.CompletedAt = &completedAt

	s.log(ctx).WithError(cause).Error("Upload job failed")

	if err := s.jobs.Save(ctx, job); err != nil {
		s.log(ctx).WithError(err).Error("Failed to save failed job state")
		return
	}
	s.publish(ctx, notify.EventFailed, job)
}

func (s *UploadService) publish(ctx context.Context, t notify.EventType, job *domain.BulkUploadJob) {
	if err := s.publisher.Publish(ctx, notify.NewEvent(t, job)); err != nil {
		s.log(ctx).WithError(err).WithField("event", string(t)).Warn("Failed to publish job event")
	}
}

// cleanup archives the staged file when an archive is configured, then removes it.
func (s *UploadService) cleanup(ctx context.Context, job *domain.BulkUploadJob, filePath string) {
	if s.archive != nil {
		url, err := storage.ArchiveFile(ctx, s.archive, storage.ArchiveKey(job.ID, job.SourceFileName), filePath)
		if err != nil {
			s.log(ctx).WithError(err).Warn("Failed to archive upload file")
		} else {
			s.log(ctx).WithField("archive_url", url).Info("Archived upload file")
		}
	}
	removeFile(ctx, filePath)
}

// removeFile deletes a staged file; a file that is already gone is not an error.
func removeFile(ctx context.Context, filePath string) {
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.FromContext(ctx).WithError(err).WithField("path", filePath).Warn("Failed to remove staged file")
	}
}

// GetStatus returns the polling view of a job. A non-empty owner scopes the
// lookup: another owner's job reads as not found.
func (s *UploadService) GetStatus(ctx context.Context, owner, id string) (*StatusView, error) {
	job, err := s.getJob(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	view := NewStatusView(job)
	return &view, nil
}

// GetErrors returns the error listing of a job, scoped like GetStatus.
func (s *UploadService) GetErrors(ctx context.Context, owner, id string) (*ErrorReport, error) {
	job, err := s.getJob(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	report := NewErrorReport(job)
	return &report, nil
}

// ListJobs returns the owner's jobs, newest first, and their total count.
func (s *UploadService) ListJobs(ctx context.Context, owner string, limit, offset int) ([]StatusView, int64, error) {
	jobs, total, err := s.jobs.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	views := make([]StatusView, 0, len(jobs))
	for i := range jobs {
		views = append(views, NewStatusView(&jobs[i]))
	}
	return views, total, nil
}

func (s *UploadService) getJob(ctx context.Context, owner, id string) (*domain.BulkUploadJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if owner != "" && job.OwnerID != owner {
		return nil, ErrJobNotFound
	}
	return job, nil
}
