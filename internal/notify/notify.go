// Package notify publishes bulk upload job events to external listeners.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/tally/internal/config"
	"github.com/timmy/tally/internal/domain"
)

// EventType names a point in a job's lifecycle.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is a snapshot of a job taken at a checkpoint or at finalization.
type Event struct {
	Type         EventType          `json:"type"`
	UploadID     string             `json:"upload_id"`
	OwnerID      string             `json:"owner_id"`
	RecordType   domain.RecordType  `json:"record_type"`
	ElectionYear int                `json:"election_year"`
	Status       domain.JobStatus   `json:"status"`
	TotalRows    int                `json:"total_rows"`
	Progress     domain.JobProgress `json:"progress"`
	ErrorCount   int                `json:"error_count"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// Terminal reports whether the event closes the job.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}

// NewEvent snapshots a job.
func NewEvent(t EventType, job *domain.BulkUploadJob) Event {
	return Event{
		Type:         t,
		UploadID:     job.ID,
		OwnerID:      job.OwnerID,
		RecordType:   job.RecordType,
		ElectionYear: job.ElectionYear,
		Status:       job.Status,
		TotalRows:    job.TotalRows,
		Progress:     job.Progress,
		ErrorCount:   len(job.ValidationErrors),
		OccurredAt:   time.Now().UTC(),
	}
}

// Publisher delivers job events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases publishers that hold connections.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// New builds the publishers enabled in cfg. With none enabled it returns an empty Multi.
// Parameters:
//   - ctx: context bounding connection checks.
//   - cfg: notification configuration.
// Returns:
//   - Multi: enabled publishers.
//   - error: non-nil if an enabled backend cannot be reached.
func New(ctx context.Context, cfg config.NotifyConfig) (Multi, error) {
	var pubs Multi
	if cfg.Webhook.URL != "" {
		pubs = append(pubs, NewWebhookPublisher(cfg.Webhook))
	}
	if cfg.Redis.Enabled {
		rp, err := NewRedisPublisher(ctx, cfg.Redis)
		if err != nil {
			pubs.Close()
			return nil, err
		}
		pubs = append(pubs, rp)
	}
	return pubs, nil
}
