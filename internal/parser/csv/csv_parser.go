// Package csv parses delimited text with a header row into records.Row maps.
//
// Unlike a lenient loader, every body row must have exactly as many fields as
// the header: a short or long row is a malformed file, not a row to skip,
// because each input row has to become exactly one target record.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"gcload/internal/parser/headers"
	"gcload/internal/records"
)

// Options configures the CSV parser. All fields are optional.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// HeaderMap maps source header names to canonical keys.
	HeaderMap map[string]string
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs but not for concurrent use.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads the header and all body rows from r. Empty cells become nil.
// Any read error, including a field-count mismatch, is a *records.FileError
// naming the offending line.
func (p *Parser) Parse(r io.Reader) ([]records.Row, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.ReuseRecord = true

	h, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fileErr(errors.New("missing header row"))
		}
		return nil, fileErr(fmt.Errorf("read header: %w", err))
	}
	hdrs, err := headers.Normalize(h, p.opt.HeaderMap)
	if err != nil {
		return nil, fileErr(err)
	}
	cr.FieldsPerRecord = len(hdrs)

	var out []records.Row
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fileErr(fmt.Errorf("row %d: %w", line, err))
		}

		rec := make(records.Row, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[hdrs[i]] = emptyToNil(val)
		}
		out = append(out, rec)
	}
	return out, nil
}

func fileErr(err error) error {
	return &records.FileError{Format: "csv", Op: "parse", Err: err}
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
