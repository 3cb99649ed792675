package secondary

import (
	"context"
	"time"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

type JobEventRepository interface {
	// SaveEvent stores a single job event
	SaveEvent(ctx context.Context, event *domain.JobEvent) error

	// ListEvents returns the most recent events of a job, newest first
	ListEvents(ctx context.Context, jobPrefix string, limit int) ([]*domain.JobEvent, error)
}

type JobEventPruner interface {
	// DeleteEventsBefore removes events created before the cutoff and returns how many
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
