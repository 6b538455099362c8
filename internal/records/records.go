// Package records defines the data model shared by the loader: untyped input
// rows as they come out of a parser, and the typed target records the
// Genomcore platform accepts.
//
// Input rows are deliberately loose (map[string]any) because CSV, JSON and
// spreadsheet sources disagree on types. Target records are concrete structs
// so that the shape sent over the wire is checked by the compiler rather than
// by convention.
package records

// Row is a single input record. Keys are flat source names (CSV headers such
// as "meta.userId", spreadsheet columns) or, for JSON sources, top-level keys
// whose values may be nested objects. Empty CSV cells are stored as nil.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Meta is the descriptive half of a time-series point.
type Meta struct {
	UserID     int    `json:"userId"`
	Source     string `json:"source"`
	Metric     string `json:"metric"`
	ExternalID string `json:"externalId"`
	Batch      string `json:"batch"`
}

// Point is the measured half of a time-series point. Start and End are kept
// as the strings found in the source; the platform parses them.
type Point struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Value int    `json:"value"`
}

// TimeSeriesPoint is one datapoint for the time-series API.
type TimeSeriesPoint struct {
	Meta  Meta  `json:"meta"`
	Point Point `json:"point"`
}

// GenericRecord is a record created against a named schema template
// (patients, terminologies, report-style grouped records).
type GenericRecord struct {
	Code string         `json:"code,omitempty"`
	Data map[string]any `json:"data"`
}

// DeletionRef identifies a record to delete.
type DeletionRef struct {
	ID string `json:"id"`
}

// Target is the set of record variants the platform accepts.
type Target interface {
	TimeSeriesPoint | GenericRecord | DeletionRef
}

// Batch is an ordered sequence of target records submitted in one call.
type Batch[T Target] []T

// Chunks splits b into consecutive sub-batches of at most size elements.
// A non-positive size yields a single chunk holding the whole batch.
func (b Batch[T]) Chunks(size int) []Batch[T] {
	if len(b) == 0 {
		return nil
	}
	if size <= 0 || size >= len(b) {
		return []Batch[T]{b}
	}
	out := make([]Batch[T], 0, (len(b)+size-1)/size)
	for start := 0; start < len(b); start += size {
		end := start + size
		if end > len(b) {
			end = len(b)
		}
		out = append(out, b[start:end])
	}
	return out
}

// ItemsBody wraps a batch as {"items": [...]}, the envelope some record
// templates expect.
type ItemsBody[T Target] struct {
	Items Batch[T] `json:"items"`
}

// DeleteBody is the request body for record deletion.
type DeleteBody struct {
	Records []DeletionRef `json:"records"`
}

// IDs returns the identifiers in b in order.
func (b DeleteBody) IDs() []string {
	out := make([]string, len(b.Records))
	for i, r := range b.Records {
		out[i] = r.ID
	}
	return out
}
