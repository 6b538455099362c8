// Package builtin contains the row-level steps a job can run before rows are
// shaped into target records: Filter, Derive, Require and Dedup.
//
// Steps take and return []records.Row. They never mutate the rows they are
// given; a step that changes a row works on a clone.
package builtin

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// number reads v as a float64. ok is false for nil and blank strings.
func number(v any) (f float64, ok bool, err error) {
	switch t := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return t, true, nil
	case float32:
		return float64(t), true, nil
	case int:
		return float64(t), true, nil
	case int64:
		return float64(t), true, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%q is not a number", t.String())
		}
		return f, true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%q is not a number", s)
		}
		return f, true, nil
	}
	return 0, false, fmt.Errorf("type %T is not a number", v)
}
