package records

import (
	"errors"
	"fmt"
)

// FileError reports a source file that is missing, unreadable, or malformed
// for its declared format.
type FileError struct {
	Path   string
	Format string // csv, json, xlsx, ids; empty when not yet known
	Op     string // open, read, parse, detect
	Err    error
}

func (e *FileError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("%s %s file %s: %v", e.Op, e.Format, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// FormatError reports a record that does not satisfy the target schema: a
// required field is absent or a value failed type coercion.
type FormatError struct {
	Line   int // 1-based data row; 0 when not tied to a row
	Field  string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	var msg string
	switch {
	case e.Line > 0 && e.Field != "":
		msg = fmt.Sprintf("row %d: field %q: %s", e.Line, e.Field, e.Reason)
	case e.Line > 0:
		msg = fmt.Sprintf("row %d: %s", e.Line, e.Reason)
	case e.Field != "":
		msg = fmt.Sprintf("field %q: %s", e.Field, e.Reason)
	default:
		msg = e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsFileError reports whether err has a *FileError in its chain.
func IsFileError(err error) bool {
	var fe *FileError
	return errors.As(err, &fe)
}

// IsFormatError reports whether err has a *FormatError in its chain.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
