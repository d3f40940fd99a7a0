package service

import (
	"math"
	"strings"
	"time"

	"github.com/timmy/tally/internal/domain"
)

// ProgressView is the row progress of a job.
type ProgressView struct {
	Processed  int `json:"processed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// SummaryView splits processed rows by outcome.
type SummaryView struct {
	SuccessfulInserts int `json:"successful_inserts"`
	UpdatedRecords    int `json:"updated_records"`
	SkippedDuplicates int `json:"skipped_duplicates"`
	ValidationErrors  int `json:"validation_errors"`
}

// StatusView is the polling shape of a job.
type StatusView struct {
	UploadID       string            `json:"upload_id"`
	Status         domain.JobStatus  `json:"status"`
	RecordType     domain.RecordType `json:"record_type"`
	ElectionYear   int               `json:"election_year"`
	FileName       string            `json:"file_name"`
	Options        domain.JobOptions `json:"options"`
	Progress       ProgressView      `json:"progress"`
	Summary        SummaryView       `json:"summary"`
	ProcessingTime *float64          `json:"processing_time,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// NewStatusView builds the polling shape of job.
func NewStatusView(job *domain.BulkUploadJob) StatusView {
	return StatusView{
		UploadID:     job.ID,
		Status:       job.Status,
		RecordType:   job.RecordType,
		ElectionYear: job.ElectionYear,
		FileName:     job.SourceFileName,
		Options:      job.Options,
		Progress: ProgressView{
			Processed:  job.Progress.Processed,
			Total:      job.TotalRows,
			Percentage: Percentage(job.Progress.Processed, job.TotalRows),
		},
		Summary: SummaryView{
			SuccessfulInserts: job.Progress.Successful,
			UpdatedRecords:    job.Progress.Updated,
			SkippedDuplicates: job.Progress.Duplicates,
			ValidationErrors:  job.Progress.Failed,
		},
		ProcessingTime: job.ProcessingTimeSeconds,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// Percentage returns processed/total as a rounded percentage, 0 when total is 0.
func Percentage(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}

// ErrorSummary counts row errors by kind.
type ErrorSummary struct {
	TotalErrors      int `json:"total_errors"`
	DuplicateErrors  int `json:"duplicate_errors"`
	ValidationErrors int `json:"validation_errors"`
}

// ErrorReport is the error listing shape of a job.
type ErrorReport struct {
	UploadID         string            `json:"upload_id"`
	ValidationErrors []domain.RowError `json:"validation_errors"`
	ErrorSummary     ErrorSummary      `json:"error_summary"`
}

// NewErrorReport builds the error listing of job.
func NewErrorReport(job *domain.BulkUploadJob) ErrorReport {
	rowErrors := []domain.RowError(job.ValidationErrors)
	if rowErrors == nil {
		rowErrors = []domain.RowError{}
	}

	summary := ErrorSummary{TotalErrors: len(rowErrors)}
	for _, re := range rowErrors {
		if IsDuplicateError(re) {
			summary.DuplicateErrors++
		}
	}
	summary.ValidationErrors = summary.TotalErrors - summary.DuplicateErrors

	return ErrorReport{
		UploadID:         job.ID,
		ValidationErrors: rowErrors,
		ErrorSummary:     summary,
	}
}

var duplicateMarkers = []string{"already exists", "duplicate", "unique constraint"}

// IsDuplicateError reports whether a row error describes a pre-existing record.
func IsDuplicateError(re domain.RowError) bool {
	for _, fe := range re.Errors {
		msg := strings.ToLower(fe.Message)
		for _, marker := range duplicateMarkers {
			if strings.Contains(msg, marker) {
				return true
			}
		}
	}
	return false
}
