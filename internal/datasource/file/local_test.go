package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gcload/internal/records"
)

// TestLocalOpen covers success, missing file, and pre-canceled context.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	type tc struct {
		name            string
		prepare         func(t *testing.T) string
		makeCtx         func(t *testing.T) context.Context
		wantErrIs       error
		wantFileError   bool
		wantErrContains string
		wantContent     string
	}

	writeFile := func(t *testing.T, payload string) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "data.csv")
		if err := os.WriteFile(p, []byte(payload), 0o644); err != nil {
			t.Fatalf("write test file: %v", err)
		}
		return p
	}

	cases := []tc{
		{
			name:        "success_reads_content",
			prepare:     func(t *testing.T) string { return writeFile(t, "a,b\n1,2") },
			makeCtx:     func(t *testing.T) context.Context { return context.Background() },
			wantContent: "a,b\n1,2",
		},
		{
			name: "missing_file_is_file_error",
			prepare: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.csv")
			},
			makeCtx:         func(t *testing.T) context.Context { return context.Background() },
			wantErrIs:       os.ErrNotExist,
			wantFileError:   true,
			wantErrContains: "open ",
		},
		{
			name:    "pre_canceled_context_short_circuits",
			prepare: func(t *testing.T) string { return writeFile(t, "ignored") },
			makeCtx: func(t *testing.T) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErrIs: context.Canceled,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			rc, err := NewLocal(c.prepare(t)).Open(c.makeCtx(t))

			if c.wantErrIs != nil {
				if err == nil {
					t.Fatalf("expected error %v, got nil", c.wantErrIs)
				}
				if !errors.Is(err, c.wantErrIs) {
					t.Fatalf("errors.Is(%v, %v) = false", err, c.wantErrIs)
				}
				if c.wantFileError && !records.IsFileError(err) {
					t.Fatalf("expected *records.FileError, got %T", err)
				}
				if c.wantErrContains != "" && !strings.Contains(err.Error(), c.wantErrContains) {
					t.Fatalf("error %q does not contain %q", err, c.wantErrContains)
				}
				if rc != nil {
					_ = rc.Close()
					t.Fatalf("got non-nil ReadCloser on error: %T", rc)
				}
				return
			}

			if err != nil {
				t.Fatalf("Open() unexpected error: %v", err)
			}
			defer rc.Close()

			got, rerr := io.ReadAll(rc)
			if rerr != nil {
				t.Fatalf("reading: %v", rerr)
			}
			if string(got) != c.wantContent {
				t.Fatalf("content mismatch: got %q, want %q", got, c.wantContent)
			}
		})
	}
}

func TestReadList(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "ids.txt")
	content := "# records to remove\nPatientRecord_id1\n\n  PatientRecord_id2  \n# trailing\nPatientRecord_id3\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadList(p)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	want := []string{"PatientRecord_id1", "PatientRecord_id2", "PatientRecord_id3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}

	_, err = ReadList(filepath.Join(t.TempDir(), "none.txt"))
	if !records.IsFileError(err) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected FileError wrapping ErrNotExist, got %v", err)
	}
}
