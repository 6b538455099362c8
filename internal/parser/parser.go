// Package parser selects a file parser by format and reads a whole source
// file into input rows.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gcload/internal/datasource/file"
	csvp "gcload/internal/parser/csv"
	jsonp "gcload/internal/parser/json"
	"gcload/internal/parser/xlsx"
	"gcload/internal/records"
)

// Parser turns raw bytes into input rows.
type Parser interface {
	Parse(r io.Reader) ([]records.Row, error)
}

// Supported formats.
const (
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
	FormatXLSX   = "xlsx"
)

// Options carries the format-specific knobs a caller may set.
type Options struct {
	Sheet     string
	HeaderMap map[string]string
	Comma     rune
	TrimSpace bool
}

// Detect returns format when set, otherwise derives it from the file
// extension.
func Detect(path, format string) (string, error) {
	if format != "" {
		switch format {
		case FormatCSV, FormatJSON, FormatNDJSON, FormatXLSX:
			return format, nil
		}
		return "", &records.FileError{Path: path, Op: "detect", Err: fmt.Errorf("unsupported format %q", format)}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", &records.FileError{Path: path, Op: "detect", Err: fmt.Errorf("cannot infer format from extension %q", filepath.Ext(path))}
}

// New returns the parser for format.
func New(format string, opt Options) (Parser, error) {
	switch format {
	case FormatCSV:
		return csvp.NewParser(csvp.Options{Comma: opt.Comma, TrimSpace: opt.TrimSpace, HeaderMap: opt.HeaderMap}), nil
	case FormatJSON, FormatNDJSON:
		return jsonp.NewParser(jsonp.Options{}), nil
	case FormatXLSX:
		return xlsx.NewParser(xlsx.Options{Sheet: opt.Sheet, HeaderMap: opt.HeaderMap}), nil
	}
	return nil, fmt.Errorf("parser: unsupported format %q", format)
}

// ForPath returns the parser for path, chosen by kind when set and by file
// extension otherwise.
func ForPath(path, kind string, opt Options) (Parser, error) {
	format, err := Detect(path, kind)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV && strings.EqualFold(filepath.Ext(path), ".tsv") && opt.Comma == 0 {
		opt.Comma = '\t'
	}
	return New(format, opt)
}

// ParseFile opens path, detects or validates its format, and parses every
// row. All failures are *records.FileError carrying the path.
func ParseFile(ctx context.Context, path, format string, opt Options) ([]records.Row, error) {
	p, err := ForPath(path, format, opt)
	if err != nil {
		return nil, err
	}

	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rows, err := p.Parse(rc)
	if err != nil {
		var fe *records.FileError
		if errors.As(err, &fe) && fe.Path == "" {
			fe.Path = path
		}
		return nil, err
	}
	return rows, nil
}
