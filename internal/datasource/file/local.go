// Package file implements the local filesystem data source.
package file

import (
	"context"
	"io"
	"os"

	"gcload/internal/records"
)

// Local opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the path for reading.
//
// A context that is already done short-circuits with the context error.
// Filesystem errors come back as *records.FileError that still unwrap to the
// os error, so errors.Is(err, os.ErrNotExist) works for callers.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, &records.FileError{Path: l.path, Op: "open", Err: err}
	}
	return f, nil
}
