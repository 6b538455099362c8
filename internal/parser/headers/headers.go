// Package headers normalizes tabular column headers shared by the CSV and
// spreadsheet parsers.
package headers

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// Normalize trims each header, strips a UTF-8 BOM from the first cell,
// converts to Unicode NFC, and applies headerMap renames. Case and dots are
// preserved: "meta.userId" stays "meta.userId". Empty or duplicate headers
// are an error because every column must address exactly one field.
func Normalize(h []string, headerMap map[string]string) ([]string, error) {
	out := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		c = norm.NFC.String(c)
		if m, ok := headerMap[c]; ok {
			c = m
		}
		if c == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if j, dup := seen[c]; dup {
			return nil, fmt.Errorf("header %q repeated in columns %d and %d", c, j+1, i+1)
		}
		seen[c] = i
		out[i] = c
	}
	return out, nil
}
