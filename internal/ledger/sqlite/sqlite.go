// Package sqlite registers the SQLite ledger backend for "sqlite://" DSNs.
// The rest of the DSN is the database path, optionally with query options
// understood by modernc.org/sqlite, e.g. sqlite://ledger.db?_pragma=busy_timeout(5000).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gcload/internal/ledger"
)

// Dialect is the SQLite flavour of the ledger table.
var Dialect = ledger.Dialect{
	Name: "sqlite",
	CreateTable: `CREATE TABLE IF NOT EXISTS ` + ledger.Table + ` (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT      NOT NULL,
	operation   TEXT      NOT NULL,
	template    TEXT      NOT NULL DEFAULT '',
	chunk       INTEGER   NOT NULL,
	first_index INTEGER   NOT NULL,
	points      INTEGER   NOT NULL,
	status      TEXT      NOT NULL,
	http_status INTEGER   NOT NULL,
	error_text  TEXT      NOT NULL DEFAULT '',
	duration_ms INTEGER   NOT NULL,
	recorded_at TIMESTAMP NOT NULL
)`,
	Placeholder: ledger.QuestionMark,
}

func init() {
	ledger.Register("sqlite", func(ctx context.Context, dsn string) (ledger.Ledger, error) {
		return Open(ctx, ledger.TrimScheme(dsn))
	})
}

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string) (*ledger.SQL, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: database path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer at a time; parallel chunk uploads record concurrently.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	l, err := ledger.NewSQL(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}
