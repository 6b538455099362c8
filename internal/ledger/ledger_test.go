package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLedger struct {
	dsn     string
	entries []Entry
}

func (m *memLedger) Record(_ context.Context, e Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLedger) Close() error { return nil }

func init() {
	Register("memtest", func(_ context.Context, dsn string) (Ledger, error) {
		return &memLedger{dsn: dsn}, nil
	})
	Register("broken", func(context.Context, string) (Ledger, error) {
		return nil, errors.New("no such host")
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	l, err := Open(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, Nop{}, l)
	assert.NoError(t, l.Record(ctx, Entry{}))

	l, err = Open(ctx, "MemTest://somewhere")
	require.NoError(t, err)
	assert.Equal(t, "MemTest://somewhere", l.(*memLedger).dsn)

	_, err = Open(ctx, "nosuch://x")
	assert.ErrorContains(t, err, `unsupported scheme "nosuch"`)

	_, err = Open(ctx, "user:secret@host/db")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")

	_, err = Open(ctx, "broken://x")
	assert.ErrorContains(t, err, "no such host")
}

func TestRegisterTwicePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("memtest", func(context.Context, string) (Ledger, error) { return Nop{}, nil })
	})
	assert.Contains(t, Schemes(), "memtest")
}
