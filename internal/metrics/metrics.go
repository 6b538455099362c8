// Package metrics records run metrics through a pluggable backend.
//
// The package exposes a narrow Backend interface (counters and durations)
// and a package-level backend that defaults to a no-op, so instrumented code
// can always call it whether or not a real backend was configured. Concrete
// systems live in subpackages: prompush (Prometheus Pushgateway) and datadog
// (DogStatsD).
//
// Runs record three steps: read (open and parse the source), transform
// (rows to target records) and submit (calls to the platform).
package metrics

import (
	"sync"
	"time"
)

// Metric names.
const (
	StepTotal           = "gcload_step_total"
	StepDurationSeconds = "gcload_step_duration_seconds"
	RecordsTotal        = "gcload_records_total"
	ChunksTotal         = "gcload_chunks_total"
)

// Step names.
const (
	StepRead      = "read"
	StepTransform = "transform"
	StepSubmit    = "submit"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration-style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of step and records how long it took.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta to the record counter for kind. Kinds used by the
// runners: read, filtered, deduplicated, submitted, accepted, rejected.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches counts chunks sent to the platform with the given outcome
// ("accepted" or "failed").
func RecordBatches(job, status string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(ChunksTotal, float64(delta), Labels{
		"job":    job,
		"status": status,
	})
}
