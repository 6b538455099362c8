// Package xlsx reads one sheet of an Excel workbook into records.Row maps.
// The first row of the sheet is the header. Cells are returned as their
// formatted string values; typing happens later, in the schema.
package xlsx

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"gcload/internal/parser/headers"
	"gcload/internal/records"
)

// Options configures the spreadsheet parser.
type Options struct {
	// Sheet names the sheet to read. Empty selects the first sheet.
	Sheet string

	// HeaderMap maps source header names to canonical keys.
	HeaderMap map[string]string
}

// Parser parses .xlsx workbooks.
type Parser struct{ opt Options }

// NewParser constructs a Parser.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads the configured sheet from r. Rows with no non-empty cell are
// skipped; trailing cells excelize omits are treated as empty.
func (p *Parser) Parse(r io.Reader) ([]records.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fileErr(fmt.Errorf("open workbook: %w", err))
	}
	defer f.Close()

	sheet := p.opt.Sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fileErr(errors.New("workbook has no sheets"))
		}
		sheet = list[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fileErr(fmt.Errorf("sheet %q not found", sheet))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fileErr(fmt.Errorf("read sheet %q: %w", sheet, err))
	}
	if len(rows) == 0 {
		return nil, fileErr(fmt.Errorf("sheet %q has no header row", sheet))
	}

	hdrs, err := headers.Normalize(rows[0], p.opt.HeaderMap)
	if err != nil {
		return nil, fileErr(fmt.Errorf("sheet %q: %w", sheet, err))
	}

	out := make([]records.Row, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if len(cells) > len(hdrs) {
			return nil, fileErr(fmt.Errorf("sheet %q row %d: %d cells but %d headers", sheet, i+2, len(cells), len(hdrs)))
		}
		if blank(cells) {
			continue
		}
		rec := make(records.Row, len(hdrs))
		for j, h := range hdrs {
			var v any
			if j < len(cells) {
				if s := strings.TrimSpace(cells[j]); s != "" {
					v = s
				}
			}
			rec[h] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func fileErr(err error) error {
	return &records.FileError{Format: "xlsx", Op: "parse", Err: err}
}
