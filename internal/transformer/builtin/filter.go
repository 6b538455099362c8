package builtin

import (
	"fmt"

	"gcload/internal/records"
)

// Filter keeps rows whose Field compares true against Value with Op.
// Rows where the field is absent or blank are dropped; a value that is
// present but not numeric fails the step.
type Filter struct {
	Field string
	Op    string // one of > >= < <= == !=
	Value float64
}

// Apply returns the rows that pass the comparison, in input order.
func (f Filter) Apply(in []records.Row) ([]records.Row, error) {
	cmp, err := comparator(f.Op)
	if err != nil {
		return nil, err
	}
	out := make([]records.Row, 0, len(in))
	for i, r := range in {
		v, ok, err := number(r[f.Field])
		if err != nil {
			return nil, &records.FormatError{Line: i + 1, Field: f.Field, Reason: err.Error()}
		}
		if ok && cmp(v, f.Value) {
			out = append(out, r)
		}
	}
	return out, nil
}

func comparator(op string) (func(a, b float64) bool, error) {
	switch op {
	case ">":
		return func(a, b float64) bool { return a > b }, nil
	case ">=":
		return func(a, b float64) bool { return a >= b }, nil
	case "<":
		return func(a, b float64) bool { return a < b }, nil
	case "<=":
		return func(a, b float64) bool { return a <= b }, nil
	case "==":
		return func(a, b float64) bool { return a == b }, nil
	case "!=":
		return func(a, b float64) bool { return a != b }, nil
	}
	return nil, fmt.Errorf("filter: unknown operator %q", op)
}
