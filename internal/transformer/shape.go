package transformer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gcload/internal/config"
	"gcload/internal/records"
	"gcload/internal/schema"
)

// TimeSeries maps flat rows onto time-series points through a schema whose
// targets are the meta.* and point.* paths of records.TimeSeriesPoint.
type TimeSeries struct {
	Schema schema.Schema
}

// NewTimeSeries returns the transform for the standard CSV layout.
func NewTimeSeries() TimeSeries { return TimeSeries{Schema: schema.TimeSeries} }

// Transform converts every row, failing on the first row that does not fit.
func (t TimeSeries) Transform(rows []records.Row) (records.Batch[records.TimeSeriesPoint], error) {
	out := make(records.Batch[records.TimeSeriesPoint], 0, len(rows))
	for i, r := range rows {
		p, err := t.point(r, i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (t TimeSeries) point(r records.Row, line int) (records.TimeSeriesPoint, error) {
	var p records.TimeSeriesPoint
	nested, err := t.Schema.Apply(r, line)
	if err != nil {
		return p, err
	}
	b, err := json.Marshal(nested)
	if err != nil {
		return p, &records.FormatError{Line: line, Reason: "encode point", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, &records.FormatError{Line: line, Reason: "schema does not produce a time-series point", Err: err}
	}
	return p, nil
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Generic shapes each row into a report-style record: a code rendered from a
// template and one nested object per group under data.
type Generic struct {
	// Code holds {field} placeholders, e.g. "Patient_{patient_id}". Empty
	// leaves the record code unset.
	Code   string
	Groups []config.Group
}

// NewGeneric builds a Generic transform from a job's record shape.
func NewGeneric(shape config.RecordShape) Generic {
	return Generic{Code: shape.Code, Groups: shape.Groups}
}

// Transform converts every row, failing on the first row that does not fit.
func (g Generic) Transform(rows []records.Row) (records.Batch[records.GenericRecord], error) {
	out := make(records.Batch[records.GenericRecord], 0, len(rows))
	for i, r := range rows {
		rec, err := g.record(r, i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (g Generic) record(r records.Row, line int) (records.GenericRecord, error) {
	rec := records.GenericRecord{Data: make(map[string]any, len(g.Groups))}
	typed := make(map[string]any)
	for _, grp := range g.Groups {
		s := schema.Schema{Name: grp.Name, Fields: grp.Fields}
		obj, err := s.Apply(r, line)
		if err != nil {
			return rec, err
		}
		rec.Data[grp.Name] = obj
		flat, err := s.Flatten(obj, line)
		if err != nil {
			return rec, err
		}
		for k, v := range flat {
			typed[k] = v
		}
	}
	code, err := renderCode(g.Code, r, typed, line)
	if err != nil {
		return rec, err
	}
	rec.Code = code
	return rec, nil
}

// renderCode fills placeholders from the coerced group values first, so an
// integer column read from a spreadsheet renders as "101" and not "101.0",
// and from the raw row otherwise.
func renderCode(tmpl string, raw records.Row, typed map[string]any, line int) (string, error) {
	var missing string
	code := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := typed[name]; ok && v != nil {
			return schema.FormatValue(v)
		}
		if v, ok := raw[name]; ok && v != nil && strings.TrimSpace(schema.FormatValue(v)) != "" {
			return strings.TrimSpace(schema.FormatValue(v))
		}
		if missing == "" {
			missing = name
		}
		return m
	})
	if missing != "" {
		return "", &records.FormatError{Line: line, Field: missing, Reason: "code placeholder has no value"}
	}
	return code, nil
}

// Passthrough wraps JSON objects that already match the record layout. A
// row with a data key contributes its code and data. A row with neither key
// becomes the data of a record with no code; a code without data is an error.
type Passthrough struct{}

// Transform converts every row, failing on the first row that does not fit.
func (Passthrough) Transform(rows []records.Row) (records.Batch[records.GenericRecord], error) {
	out := make(records.Batch[records.GenericRecord], 0, len(rows))
	for i, r := range rows {
		line := i + 1
		d, ok := r["data"]
		if !ok {
			if _, hasCode := r["code"]; hasCode {
				return nil, &records.FormatError{Line: line, Field: "data", Reason: "record has a code but no data object"}
			}
			out = append(out, records.GenericRecord{Data: map[string]any(r.Clone())})
			continue
		}
		data, isObj := d.(map[string]any)
		if !isObj {
			return nil, &records.FormatError{Line: line, Field: "data", Reason: fmt.Sprintf("expected an object, got %T", d)}
		}
		rec := records.GenericRecord{Data: data}
		if c, ok := r["code"]; ok && c != nil {
			s, isStr := c.(string)
			if !isStr {
				return nil, &records.FormatError{Line: line, Field: "code", Reason: fmt.Sprintf("expected a string, got %T", c)}
			}
			rec.Code = s
		}
		for k := range r {
			if k != "code" && k != "data" {
				return nil, &records.FormatError{Line: line, Field: k, Reason: "unexpected key beside code and data"}
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Deletions builds the deletion body for ids. Blank space around ids is
// trimmed, repeats are dropped and the result is sorted, so the body depends
// only on the set of ids given. An empty id is an error.
func Deletions(ids []string) (records.DeleteBody, error) {
	set := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return records.DeleteBody{}, &records.FormatError{Line: i + 1, Field: "id", Reason: "empty record id"}
		}
		set[id] = struct{}{}
	}
	sorted := make([]string, 0, len(set))
	for id := range set {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	body := records.DeleteBody{Records: make([]records.DeletionRef, len(sorted))}
	for i, id := range sorted {
		body.Records[i] = records.DeletionRef{ID: id}
	}
	return body, nil
}
