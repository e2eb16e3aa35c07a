// Package postgres stores event records in PostgreSQL using COPY.
package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juliosaraiva/clefreader/internal/sink"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id               UUID PRIMARY KEY,
    run_id           UUID        NOT NULL,
    line             INTEGER     NOT NULL,
    ts               TIMESTAMPTZ NOT NULL,
    level            TEXT        NOT NULL,
    message_template TEXT        NOT NULL,
    message          TEXT        NOT NULL,
    exception        TEXT,
    trace_id         TEXT,
    span_id          TEXT,
    properties       JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (ts);
`

var columns = []string{
	"id", "run_id", "line", "ts", "level", "message_template",
	"message", "exception", "trace_id", "span_id", "properties",
}

// Sink writes records to a PostgreSQL table.
type Sink struct {
	pool  *pgxpool.Pool
	table string
}

// Connect opens a pool for dsn, checks it, and creates the table if needed.
func Connect(ctx context.Context, dsn string) (*Sink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	s := &Sink{pool: pool, table: sink.DefaultTable}
	if err := s.Ready(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Printf("[postgres] connected, writing to %s", s.table)
	return s, nil
}

// Ready checks that the database answers queries.
func (s *Sink) Ready(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "select 1").Scan(&one)
}

// Migrate creates the events table and its index.
func (s *Sink) Migrate(ctx context.Context) error {
	table := pgx.Identifier{s.table}.Sanitize()
	index := pgx.Identifier{s.table + "_ts_idx"}.Sanitize()
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaSQL, table, index)); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

// WriteBatch copies records into the table.
func (s *Sink) WriteBatch(ctx context.Context, records []sink.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	n, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{s.table},
		columns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			return rowValues(records[i]), nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", s.table, err)
	}
	return n, nil
}

// Close closes the pool.
func (s *Sink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// rowValues lays out r in the order of columns. Empty optional text is NULL.
func rowValues(r sink.Record) []any {
	return []any{
		pgtype.UUID{Bytes: r.ID, Valid: true},
		pgtype.UUID{Bytes: r.RunID, Valid: true},
		int32(r.Line),
		r.Timestamp,
		r.Level,
		r.MessageTemplate,
		r.Message,
		nullText(r.Exception),
		nullText(r.TraceID),
		nullText(r.SpanID),
		r.Properties,
	}
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
