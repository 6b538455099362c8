package parser

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcload/internal/records"
)

func TestDetect(t *testing.T) {
	cases := map[string]string{
		"a.csv":      FormatCSV,
		"a.TSV":      FormatCSV,
		"a.json":     FormatJSON,
		"a.jsonl":    FormatNDJSON,
		"b.xlsx":     FormatXLSX,
		"dir/x.XLSX": FormatXLSX,
	}
	for path, want := range cases {
		got, err := Detect(path, "")
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	got, err := Detect("data.bin", "json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, got)

	_, err = Detect("data.bin", "")
	assert.True(t, records.IsFileError(err))

	_, err = Detect("data.csv", "parquet")
	assert.True(t, records.IsFileError(err))
}

func TestParseFile_CSVAndTSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "in.csv")
	tsvPath := filepath.Join(dir, "in.tsv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b\n1,2\n"), 0o600))
	require.NoError(t, os.WriteFile(tsvPath, []byte("a\tb\n1\t2\n"), 0o600))

	for _, p := range []string{csvPath, tsvPath} {
		rows, err := ParseFile(context.Background(), p, "", Options{})
		require.NoError(t, err, p)
		assert.Equal(t, []records.Row{{"a": "1", "b": "2"}}, rows, p)
	}
}

func TestParseFile_ErrorsCarryPath(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.csv")
	_, err := ParseFile(context.Background(), missing, "", Options{})
	var fe *records.FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, missing, fe.Path)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"a":`), 0o600))
	_, err = ParseFile(context.Background(), bad, "", Options{})
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, bad, fe.Path)
	assert.Equal(t, "json", fe.Format)
}
