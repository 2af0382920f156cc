package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables the process needs. Bootstrap DDL is
// serialized across api/worker startups with an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingest_jobs (
	id TEXT PRIMARY KEY,
	source_ref TEXT NOT NULL,
	filename TEXT NOT NULL,
	mode TEXT NOT NULL,
	remote_job_id TEXT,
	status TEXT NOT NULL,
	pages_expected INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	last_checked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_jobs_status ON ingest_jobs(status);
CREATE INDEX IF NOT EXISTS idx_ingest_jobs_created_at ON ingest_jobs(created_at DESC);

CREATE TABLE IF NOT EXISTS reference_tokens (
	token_id TEXT PRIMARY KEY,
	storage_location TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reference_tokens_expires_at ON reference_tokens(expires_at);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	user_text TEXT NOT NULL,
	detected_language TEXT,
	canonical_text TEXT,
	answer JSONB NOT NULL,
	citations JSONB NOT NULL DEFAULT '[]'::jsonb,
	processing_time_ms BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_conversation_turns_conversation ON conversation_turns(conversation_id, ts);

CREATE TABLE IF NOT EXISTS analytics_events (
	id BIGSERIAL PRIMARY KEY,
	query_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	language TEXT,
	category TEXT,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	citation_count INTEGER NOT NULL DEFAULT 0,
	success BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analytics_events_ts ON analytics_events(ts DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
