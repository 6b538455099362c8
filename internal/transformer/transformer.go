// Package transformer turns parsed input rows into the target records the
// platform accepts. Every transform here is pure: the same rows always give
// the same batch, and each input row yields exactly one target record.
package transformer

import (
	"fmt"

	"gcload/internal/config"
	"gcload/internal/records"
	"gcload/internal/transformer/builtin"
)

// Step is a row-level transform applied before rows are shaped.
type Step interface {
	Apply([]records.Row) ([]records.Row, error)
}

// Chain is an ordered list of steps.
type Chain []Step

// Apply runs every step in order, stopping at the first error.
func (c Chain) Apply(in []records.Row) ([]records.Row, error) {
	out := in
	for _, s := range c {
		var err error
		if out, err = s.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromSteps builds a Chain from job step definitions.
func FromSteps(steps []config.Step) (Chain, error) {
	chain := make(Chain, 0, len(steps))
	for i, st := range steps {
		switch st.Kind {
		case "filter":
			chain = append(chain, builtin.Filter{
				Field: st.Options.String("field", ""),
				Op:    st.Options.String("op", ""),
				Value: st.Options.Float("value", 0),
			})
		case "derive":
			chain = append(chain, builtin.Derive{
				Target: st.Options.String("target", ""),
				Source: st.Options.String("source", ""),
				Factor: st.Options.Float("factor", 0),
			})
		case "require":
			chain = append(chain, builtin.Require{Fields: st.Options.StringSlice("fields")})
		case "dedup":
			chain = append(chain, &builtin.Dedup{Keys: st.Options.StringSlice("keys")})
		default:
			return nil, fmt.Errorf("steps[%d]: unknown step kind %q", i, st.Kind)
		}
	}
	return chain, nil
}
