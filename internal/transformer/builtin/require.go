package builtin

import "gcload/internal/records"

// Require fails on the first row missing a value for any of Fields. Unlike a
// filter it never drops rows: every input row has to reach the platform.
type Require struct {
	Fields []string
}

// Apply returns in unchanged when every row carries every field.
func (r Require) Apply(in []records.Row) ([]records.Row, error) {
	for i, rec := range in {
		for _, f := range r.Fields {
			v, exists := rec[f]
			if !exists || v == nil || v == "" {
				return nil, &records.FormatError{Line: i + 1, Field: f, Reason: "required field missing"}
			}
		}
	}
	return in, nil
}
