// Package postgres registers the PostgreSQL ledger backend for
// "postgres://" and "postgresql://" DSNs, using a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gcload/internal/ledger"
)

const createTable = `CREATE TABLE IF NOT EXISTS ` + ledger.Table + ` (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT        NOT NULL,
	operation   TEXT        NOT NULL,
	template    TEXT        NOT NULL DEFAULT '',
	chunk       INTEGER     NOT NULL,
	first_index INTEGER     NOT NULL,
	points      INTEGER     NOT NULL,
	status      TEXT        NOT NULL,
	http_status INTEGER     NOT NULL,
	error_text  TEXT        NOT NULL DEFAULT '',
	duration_ms BIGINT      NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
)`

const insertEntry = `INSERT INTO ` + ledger.Table + ` (
	run_id, operation, template, chunk, first_index, points,
	status, http_status, error_text, duration_ms, recorded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func init() {
	open := func(ctx context.Context, dsn string) (ledger.Ledger, error) { return Open(ctx, dsn) }
	ledger.Register("postgres", open)
	ledger.Register("postgresql", open)
}

// Ledger writes entries through a pgx pool.
type Ledger struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and creates the ledger table if needed.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create %s: %w", ledger.Table, err)
	}
	return &Ledger{pool: pool}, nil
}

// Record inserts e.
func (l *Ledger) Record(ctx context.Context, e ledger.Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := l.pool.Exec(ctx, insertEntry,
		e.RunID, e.Operation, e.Template, e.Chunk, e.FirstIndex, e.Count,
		e.Status, e.HTTPStatus, e.Error, e.Duration.Milliseconds(), e.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert ledger entry: %w", err)
	}
	return nil
}

// Close releases the pool.
func (l *Ledger) Close() error {
	l.pool.Close()
	return nil
}
