package domain

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus represents the status of a bulk upload job.
// Values include JobStatusUploaded, JobStatusProcessing, JobStatusCompleted, JobStatusFailed
// and the reserved JobStatusCancelled.
type JobStatus string

const (
	JobStatusUploaded   JobStatus = "uploaded"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"

	// JobStatusCancelled is reserved. No transition produces it.
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition can leave the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// TerminalStatuses lists every status for which IsTerminal is true.
func TerminalStatuses() []JobStatus {
	return []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
}

// RecordType selects which result schema the rows of a job are read as.
type RecordType string

const (
	RecordTypeConstituency RecordType = "constituency"
	RecordTypeCenter       RecordType = "center"
)

// ParseRecordType converts user input into a RecordType.
// Returns false when the value names no known record type.
func ParseRecordType(s string) (RecordType, bool) {
	switch RecordType(s) {
	case RecordTypeConstituency:
		return RecordTypeConstituency, true
	case RecordTypeCenter:
		return RecordTypeCenter, true
	}
	return "", false
}

const (
	MinElectionYear = 1970
	MaxElectionYear = 2030
)

// JobProgress holds the monotonically increasing row counters of a job.
type JobProgress struct {
	Processed  int `gorm:"default:0" json:"processed"`
	Successful int `gorm:"default:0" json:"successful"`
	Updated    int `gorm:"default:0" json:"updated"`
	Duplicates int `gorm:"default:0" json:"duplicates"`
	Failed     int `gorm:"default:0" json:"failed"`
}

// JobOptions are fixed when the job is created.
type JobOptions struct {
	OverwriteExisting bool `gorm:"default:false" json:"overwrite_existing"`
	ValidateOnly      bool `gorm:"default:false" json:"validate_only"`
}

// FieldError describes one violated rule on one field of a row.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// RowError collects the field errors of a single failed row.
// RowNumber is 1-indexed with the header excluded; 0 marks a job-level error.
type RowError struct {
	RowNumber   int               `json:"row_number"`
	BusinessKey map[string]string `json:"business_key,omitempty"`
	Errors      []FieldError      `json:"errors"`
}

// BulkUploadJob represents one bulk upload processing run and its progress metadata.
type BulkUploadJob struct {
	ID                    string                        `gorm:"type:text;primaryKey" json:"id"`
	OwnerID               string                        `gorm:"type:text;not null;index" json:"owner_id"`
	RecordType            RecordType                    `gorm:"type:text;not null" json:"record_type"`
	ElectionYear          int                           `gorm:"not null" json:"election_year"`
	SourceFileName        string                        `gorm:"type:text" json:"source_file_name"`
	SourceFileSize        int64                         `json:"source_file_size"`
	Status                JobStatus                     `gorm:"type:text;index;default:uploaded" json:"status"`
	TotalRows             int                           `gorm:"default:0" json:"total_rows"`
	Progress              JobProgress                   `gorm:"embedded;embeddedPrefix:progress_" json:"progress"`
	Options               JobOptions                    `gorm:"embedded;embeddedPrefix:option_" json:"options"`
	ValidationErrors      datatypes.JSONSlice[RowError] `json:"validation_errors"`
	ProcessingTimeSeconds *float64                      `json:"processing_time_seconds,omitempty"`
	StartedAt             *time.Time                    `json:"started_at,omitempty"`
	CompletedAt           *time.Time                    `json:"completed_at,omitempty"`
	CreatedAt             time.Time                     `json:"created_at"`
	UpdatedAt             time.Time                     `json:"updated_at"`
}

// TableName returns the database table name for BulkUploadJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (BulkUploadJob) TableName() string {
	return "bulk_upload_jobs"
}
