package builtin

import "gcload/internal/records"

// Derive sets Target to Source multiplied by Factor. When Source is absent
// the target is left unset.
type Derive struct {
	Target string
	Source string
	Factor float64
}

// Apply returns copies of the input rows with the derived field set.
func (d Derive) Apply(in []records.Row) ([]records.Row, error) {
	out := make([]records.Row, len(in))
	for i, r := range in {
		v, ok, err := number(r[d.Source])
		if err != nil {
			return nil, &records.FormatError{Line: i + 1, Field: d.Source, Reason: err.Error()}
		}
		c := r.Clone()
		if ok {
			c[d.Target] = v * d.Factor
		}
		out[i] = c
	}
	return out, nil
}
