// Package eventrepository stores audited job events in PostgreSQL
package eventrepository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	querybuilder "gitlab.com/autoserver-2025.net/internal/utils"
)

var (
	_ secondary.JobEventRepository = (*EventRepository)(nil)
	_ secondary.JobEventPruner     = (*EventRepository)(nil)
)

const defaultListLimit = 100

// EventRepository implements the JobEventRepository interface with PostgreSQL
type EventRepository struct {
	db     *sqlx.DB
	logger primary.Logger
	schema string
}

// NewEventRepository creates a new PostgreSQL event repository
func NewEventRepository(db *sqlx.DB, logger primary.Logger, schema string) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
		schema: schema,
	}
}

// SaveEvent inserts an event; an event id already stored is ignored.
func (r *EventRepository) SaveEvent(ctx context.Context, event *domain.JobEvent) error {
	tbl := domain.GetJobEventTable()
	query, args := querybuilder.NewQueryBuilder(r.schema).
		Insert(tbl.ID, tbl.JobPrefix, tbl.Kind, tbl.Payload, tbl.CreatedAt).
		Into(tbl.GetTableName()).
		Values(event.ID, event.JobPrefix, event.Kind, string(event.Payload), event.CreatedAt).
		OnConflict(tbl.ID).
		DoNothing().
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to save job event", "jobPrefix", event.JobPrefix, "error", err)
		return fmt.Errorf("failed to save job event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events of a job, newest first.
func (r *EventRepository) ListEvents(ctx context.Context, jobPrefix string, limit int) ([]*domain.JobEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	tbl := domain.GetJobEventTable()
	query, args := querybuilder.NewQueryBuilder(r.schema).
		Select(tbl.ID, tbl.JobPrefix, tbl.Kind, tbl.Payload, tbl.CreatedAt).
		From(tbl.GetTableName()).
		Where(fmt.Sprintf("%s = ?", tbl.JobPrefix), jobPrefix).
		OrderBy(tbl.CreatedAt, false).
		Limit(limit).
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	var events []*domain.JobEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		r.logger.Error("Failed to list job events", "jobPrefix", jobPrefix, "error", err)
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	return events, nil
}

func (r *EventRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tbl := domain.GetJobEventTable()
	query, args := querybuilder.NewQueryBuilder(r.schema).
		DeleteFrom(tbl.GetTableName()).
		Where(fmt.Sprintf("%s < ?", tbl.CreatedAt), cutoff).
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete job events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted job events: %w", err)
	}
	return n, nil
}
