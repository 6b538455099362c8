// Package analysis turns queried time-series points into flat rows and
// summary statistics, and exports them as CSV for plotting elsewhere.
package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"

	"gcload/internal/records"
	"gcload/internal/schema"
)

// Columns is the CSV column order, matching the flat query schema.
var Columns = schema.TimeSeriesQuery.Sources()

// Flatten maps query results onto flat rows (userId, source, metric,
// externalId, batch, start, end, value). Points missing userId, start or a
// value fail with a *records.FormatError naming the 1-based point.
func Flatten(points []map[string]any) ([]records.Row, error) {
	out := make([]records.Row, 0, len(points))
	for i, p := range points {
		row, err := schema.TimeSeriesQuery.Flatten(p, i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// SortByStart orders rows by their start timestamp, keeping the relative
// order of equal starts.
func SortByStart(rows []records.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return schema.FormatValue(rows[i]["start"]) < schema.FormatValue(rows[j]["start"])
	})
}

// Values extracts the value column.
func Values(rows []records.Row) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := r["value"].(float64); ok {
			out = append(out, v)
		}
	}
	return out
}

// Stats summarises a series of values. Mean, Median, Min and Max are NaN for
// an empty series; StdDev is the sample standard deviation and is NaN for
// fewer than two values.
type Stats struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes Stats over values. values is not modified.
func Summarize(values []float64) Stats {
	s := Stats{Count: len(values), Mean: math.NaN(), Median: math.NaN(), StdDev: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	if len(values) == 0 {
		return s
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]

	n := len(sorted)
	if n%2 == 1 {
		s.Median = sorted[n/2]
	} else {
		s.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	s.Mean = sum / float64(n)

	if n > 1 {
		var ss float64
		for _, v := range values {
			d := v - s.Mean
			ss += d * d
		}
		s.StdDev = math.Sqrt(ss / float64(n-1))
	}
	return s
}

// WriteText prints the statistics in a short human-readable form.
func (s Stats) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Points: %d\nMean Value: %g\nMedian Value: %g\nStandard Deviation: %g\nMin: %g\nMax: %g\n",
		s.Count, s.Mean, s.Median, s.StdDev, s.Min, s.Max)
	return err
}

// WriteCSV writes rows under a Columns header. Absent values are empty cells.
func WriteCSV(w io.Writer, rows []records.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	rec := make([]string, len(Columns))
	for _, r := range rows {
		for i, c := range Columns {
			rec[i] = schema.FormatValue(r[c])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
