package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/timmy/tally/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles bulk upload job records.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job, assigning an ID when empty.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist; its ID is set on return.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.BulkUploadJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusUploaded
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Save overwrites every column of an existing job. It is the checkpoint write.
// The write only applies while the stored job is not terminal, so a job closed
// elsewhere (for example by startup recovery) stays closed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record carrying the new state.
// Returns:
//   - error: ErrJobClosed if the stored job is terminal, ErrNotFound if it
//     does not exist, or the database error.
func (r *JobRepository) Save(ctx context.Context, job *domain.BulkUploadJob) error {
	res := r.db.WithContext(ctx).
		Model(job).
		Where("status NOT IN ?", domain.TerminalStatuses()).
		Select("*").
		Updates(job)
	if res.Error != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Some drivers count only changed rows, so zero can also mean "no-op".
	var stored domain.BulkUploadJob
	if err := r.db.WithContext(ctx).Select("id", "status").First(&stored, "id = ?", job.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	if stored.Status.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", job.ID, stored.Status, ErrJobClosed)
	}
	return nil
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.BulkUploadJob: job record if found.
//   - error: ErrNotFound if no job has the ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.BulkUploadJob, error) {
	var job domain.BulkUploadJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListByOwner returns the owner's jobs, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - owner: acting user ID.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.BulkUploadJob: matching jobs.
//   - int64: total number of jobs for the owner.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]domain.BulkUploadJob, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&domain.BulkUploadJob{}).
		Where("owner_id = ?", owner).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []domain.BulkUploadJob
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// ListByStatus returns every job in one of the given states, oldest first.
func (r *JobRepository) ListByStatus(ctx context.Context, statuses ...domain.JobStatus) ([]domain.BulkUploadJob, error) {
	var jobs []domain.BulkUploadJob
	if err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
