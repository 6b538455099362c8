// Package schema describes target record shapes as an ordered list of typed
// field descriptors. Each descriptor names where a value comes from in the
// input row, where it goes in the nested output object, and what type it must
// coerce to. A Schema applies all descriptors in one pass and fails with a
// records.FormatError on the first field that cannot be satisfied.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"gcload/internal/records"
)

// Kind is the expected type of a field after coercion.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindDate   Kind = "date"
	KindAny    Kind = "any"
)

// ParseKind maps loose type names onto a Kind. It accepts database-ish
// spellings ("integer", "bigint", "boolean", "timestamp", "text", ...).
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "integer", "bigint", "int8", "int4", "int2":
		return KindInt, true
	case "float", "double", "number", "numeric", "decimal", "real":
		return KindFloat, true
	case "string", "text", "varchar", "":
		return KindString, true
	case "bool", "boolean":
		return KindBool, true
	case "date", "timestamp", "timestamptz", "datetime":
		return KindDate, true
	case "any", "object", "json":
		return KindAny, true
	}
	return "", false
}

// Field is a single typed field descriptor.
type Field struct {
	// Source is the input key. A dotted Source is first looked up verbatim
	// (CSV headers such as "meta.userId") and then as a path into nested
	// objects (JSON sources).
	Source string `json:"source" yaml:"source"`

	// Target is the dotted path in the output object, e.g. "meta.userId".
	// When empty, Source is used.
	Target string `json:"target" yaml:"target"`

	Type     Kind `json:"type" yaml:"type"`
	Required bool `json:"required" yaml:"required"`

	// Layout is the time layout for date fields. RFC 3339 is tried when empty.
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`

	// Alt lists alternate paths tried in order when the primary one is absent:
	// alternate source keys when applying, alternate target paths when
	// flattening.
	Alt []string `json:"alt,omitempty" yaml:"alt,omitempty"`
}

func (f Field) target() string {
	if f.Target != "" {
		return f.Target
	}
	return f.Source
}

// Schema is an ordered list of field descriptors.
type Schema struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Check reports structural problems: empty sources, unknown kinds, duplicate
// targets and targets that are a prefix of another target (which would need
// the same path to be both a value and an object).
func (s Schema) Check() error {
	var errs []error
	seen := make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if strings.TrimSpace(f.Source) == "" {
			errs = append(errs, fmt.Errorf("fields[%d]: source must not be empty", i))
		}
		if _, ok := ParseKind(string(f.Type)); !ok {
			errs = append(errs, fmt.Errorf("fields[%d]: unknown type %q", i, f.Type))
		}
		t := f.target()
		if strings.HasPrefix(t, ".") || strings.HasSuffix(t, ".") || strings.Contains(t, "..") {
			errs = append(errs, fmt.Errorf("fields[%d]: malformed target path %q", i, t))
		}
		if j, dup := seen[t]; dup {
			errs = append(errs, fmt.Errorf("fields[%d]: target %q already produced by fields[%d]", i, t, j))
			continue
		}
		seen[t] = i
	}
	for t, i := range seen {
		for u, j := range seen {
			if i != j && strings.HasPrefix(u, t+".") {
				errs = append(errs, fmt.Errorf("fields[%d]: target %q is a parent of fields[%d] target %q", i, t, j, u))
			}
		}
	}
	return errors.Join(errs...)
}

// Apply maps one input row onto the nested output object. line is the 1-based
// data row used in error messages. Optional fields that are absent are left
// out of the output rather than emitted as null.
func (s Schema) Apply(row records.Row, line int) (map[string]any, error) {
	out := make(map[string]any, 2)
	for _, f := range s.Fields {
		raw, ok := lookupFirst(row, f.Source, f.Alt)
		if !ok || isEmpty(raw) {
			if f.Required {
				return nil, &records.FormatError{Line: line, Field: f.Source, Reason: "required field missing"}
			}
			continue
		}
		kind, _ := ParseKind(string(f.Type))
		v, err := coerce(raw, kind, f.Layout)
		if err != nil {
			return nil, &records.FormatError{Line: line, Field: f.Source, Reason: err.Error()}
		}
		if err := setPath(out, f.target(), v); err != nil {
			return nil, &records.FormatError{Line: line, Field: f.Source, Reason: err.Error()}
		}
	}
	return out, nil
}

// Flatten is the inverse of Apply: it reads each field's target path from a
// nested object and stores the value under the field's source key. Values
// are coerced to the field kind so a platform that returns numbers as strings
// still yields typed rows.
func (s Schema) Flatten(nested map[string]any, line int) (records.Row, error) {
	row := make(records.Row, len(s.Fields))
	for _, f := range s.Fields {
		raw, ok := getPathFirst(nested, f.target(), f.Alt)
		if !ok || isEmpty(raw) {
			if f.Required {
				return nil, &records.FormatError{Line: line, Field: f.target(), Reason: "required field missing"}
			}
			continue
		}
		kind, _ := ParseKind(string(f.Type))
		v, err := coerce(raw, kind, f.Layout)
		if err != nil {
			return nil, &records.FormatError{Line: line, Field: f.target(), Reason: err.Error()}
		}
		row[f.Source] = v
	}
	return row, nil
}

// Sources returns the source keys in schema order.
func (s Schema) Sources() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Source
	}
	return out
}

func lookupFirst(row records.Row, key string, alt []string) (any, bool) {
	if v, ok := lookup(row, key); ok {
		return v, true
	}
	for _, a := range alt {
		if v, ok := lookup(row, a); ok {
			return v, true
		}
	}
	return nil, false
}

// lookup resolves key verbatim first, then as a dotted path.
func lookup(row records.Row, key string) (any, bool) {
	if v, ok := row[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}
	return getPath(row, key)
}

func getPathFirst(m map[string]any, path string, alt []string) (any, bool) {
	if v, ok := getPath(m, path); ok {
		return v, true
	}
	for _, a := range alt {
		if v, ok := getPath(m, a); ok {
			return v, true
		}
	}
	return nil, false
}

func getPath(m map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[p]
			if !ok {
				return nil, false
			}
			cur = v
		case records.Row:
			v, ok := node[p]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

func setPath(m map[string]any, path string, v any) error {
	parts := strings.Split(path, ".")
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok {
			child := map[string]any{}
			cur[p] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("path %q crosses non-object value at %q", path, p)
		}
		cur = child
	}
	last := parts[len(parts)-1]
	if _, exists := cur[last]; exists {
		return fmt.Errorf("path %q already set", path)
	}
	cur[last] = v
	return nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return true
	}
	return false
}
