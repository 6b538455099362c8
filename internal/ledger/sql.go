package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Dialect holds what differs between database/sql backends.
type Dialect struct {
	Name string

	// CreateTable creates the ledger table if it does not exist.
	CreateTable string

	// Placeholder returns the bind marker for the 1-based argument n.
	Placeholder func(n int) string
}

var columns = []string{
	"run_id", "operation", "template", "chunk", "first_index", "points",
	"status", "http_status", "error_text", "duration_ms", "recorded_at",
}

// SQL is a Ledger over database/sql.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	insert  string
}

// NewSQL creates the ledger table if needed and returns a ledger writing to
// db. The ledger owns db and closes it on Close.
func NewSQL(ctx context.Context, db *sql.DB, d Dialect) (*SQL, error) {
	if _, err := db.ExecContext(ctx, d.CreateTable); err != nil {
		return nil, fmt.Errorf("%s: create %s: %w", d.Name, Table, err)
	}
	marks := make([]string, len(columns))
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return &SQL{
		db:      db,
		dialect: d,
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			Table, strings.Join(columns, ", "), strings.Join(marks, ", ")),
	}, nil
}

// Record inserts e. A zero At is stamped with the current time.
func (l *SQL) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := l.db.ExecContext(ctx, l.insert,
		e.RunID, e.Operation, e.Template, e.Chunk, e.FirstIndex, e.Count,
		e.Status, e.HTTPStatus, e.Error, e.Duration.Milliseconds(), e.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: insert ledger entry: %w", l.dialect.Name, err)
	}
	return nil
}

// Entries returns the entries of one run ordered by chunk.
func (l *SQL) Entries(ctx context.Context, runID string) ([]Entry, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE run_id = %s ORDER BY chunk, recorded_at",
		strings.Join(columns, ", "), Table, l.dialect.Placeholder(1))
	rows, err := l.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("%s: query ledger: %w", l.dialect.Name, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.RunID, &e.Operation, &e.Template, &e.Chunk, &e.FirstIndex, &e.Count,
			&e.Status, &e.HTTPStatus, &e.Error, &ms, timeScanner{&e.At}); err != nil {
			return nil, fmt.Errorf("%s: scan ledger entry: %w", l.dialect.Name, err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (l *SQL) Close() error { return l.db.Close() }

// timeScanner reads a timestamp column whether the driver returns it as
// time.Time or as text (SQLite).
type timeScanner struct{ t *time.Time }

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (s timeScanner) Scan(v any) error {
	var text string
	switch x := v.(type) {
	case nil:
		*s.t = time.Time{}
		return nil
	case time.Time:
		*s.t = x
		return nil
	case string:
		text = x
	case []byte:
		text = string(x)
	default:
		return fmt.Errorf("cannot scan %T into a timestamp", v)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			*s.t = t
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", text)
}

// TrimScheme returns dsn without its "scheme://" prefix.
func TrimScheme(dsn string) string {
	_, rest, _ := strings.Cut(dsn, "://")
	return rest
}

// QuestionMark is the placeholder style of SQLite and MySQL.
func QuestionMark(int) string { return "?" }
