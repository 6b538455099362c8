// Package ledger records the outcome of every submission a run makes: one
// entry per time-series chunk or record call, accepted or not. After a
// partial upload the ledger is what tells an operator which point ranges
// reached the platform.
//
// Backends register themselves by DSN scheme from their init functions;
// import ledger/all to enable every built-in backend.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry statuses.
const (
	StatusAccepted = "accepted"
	StatusFailed   = "failed"
)

// Table is the name of the ledger table every SQL backend writes.
const Table = "gcload_ledger"

// Entry is one submission.
type Entry struct {
	RunID      string
	Operation  string // create_time_series, create_records, delete_records
	Template   string
	Chunk      int
	FirstIndex int
	Count      int
	Status     string
	HTTPStatus int
	Error      string
	Duration   time.Duration
	At         time.Time
}

// Ledger stores entries.
type Ledger interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Nop discards every entry. It is the ledger used when none is configured.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) Close() error                        { return nil }

// Factory opens a ledger for a DSN whose scheme the factory registered.
type Factory func(ctx context.Context, dsn string) (Ledger, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available for DSNs starting with scheme "://".
// It panics on a duplicate scheme, like database/sql.Register.
func Register(scheme string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	scheme = strings.ToLower(scheme)
	if _, dup := factories[scheme]; dup {
		panic("ledger: Register called twice for scheme " + scheme)
	}
	factories[scheme] = f
}

// Schemes lists the registered DSN schemes.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for s := range factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open returns the ledger for dsn. An empty dsn yields Nop.
func Open(ctx context.Context, dsn string) (Ledger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return Nop{}, nil
	}
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("ledger: DSN %q has no scheme (want one of %s)", redact(dsn), strings.Join(Schemes(), ", "))
	}
	mu.RLock()
	f, found := factories[strings.ToLower(scheme)]
	mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("ledger: unsupported scheme %q (registered: %s)", scheme, strings.Join(Schemes(), ", "))
	}
	l, err := f(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", scheme, err)
	}
	return l, nil
}

// redact hides anything that looks like a password in a DSN.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	return "***" + dsn[at:]
}
