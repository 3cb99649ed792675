// Package postgres holds the PostgreSQL connection setup shared by the repositories
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gitlab.com/autoserver-2025.net/internal/config"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS %[1]s`,
	`CREATE TABLE IF NOT EXISTS %[1]s.job_events (
		id          TEXT PRIMARY KEY,
		job_prefix  TEXT NOT NULL,
		kind        TEXT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS job_events_prefix_created_idx ON %[1]s.job_events (job_prefix, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.operators (
		id             UUID PRIMARY KEY,
		user_name      TEXT NOT NULL UNIQUE,
		password_hash  TEXT NOT NULL,
		role           TEXT NOT NULL
	)`,
}

// Connect opens the database and creates the tables the repositories use.
func Connect(ctx context.Context, cfg *config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(stmt, cfg.Schema)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	return db, nil
}
