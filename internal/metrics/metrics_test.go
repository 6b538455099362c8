package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := current()
	t.Cleanup(func() { SetBackend(orig) })
	fb := &fakeBackend{}
	SetBackend(fb)
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("upload", StepRead, nil, 2*time.Second)
	RecordStep("upload", StepSubmit, errors.New("boom"), 1500*time.Millisecond)

	if len(fb.callsCounters) != 2 || len(fb.callsHistograms) != 2 {
		t.Fatalf("got %d counters and %d histograms, want 2 and 2", len(fb.callsCounters), len(fb.callsHistograms))
	}
	cc0 := fb.callsCounters[0]
	if cc0.name != StepTotal || cc0.delta != 1 || cc0.labels["status"] != "success" || cc0.labels["step"] != "read" {
		t.Fatalf("counter[0] = %#v", cc0)
	}
	if got := fb.callsCounters[1].labels["status"]; got != "failure" {
		t.Fatalf("counter[1].labels[status] = %q; want failure", got)
	}
	if h := fb.callsHistograms[1]; h.name != StepDurationSeconds || h.value != 1.5 {
		t.Fatalf("histogram[1] = %#v; want 1.5s", h)
	}
}

func TestRecordRowAndBatches_SkipNonPositive(t *testing.T) {
	fb := install(t)

	RecordRow("upload", "read", 0)
	RecordRow("upload", "read", -3)
	RecordBatches("upload", "accepted", 0)
	if len(fb.callsCounters) != 0 {
		t.Fatalf("expected no calls, got %d", len(fb.callsCounters))
	}

	RecordRow("upload", "accepted", 2500)
	RecordBatches("upload", "failed", 1)
	if len(fb.callsCounters) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fb.callsCounters))
	}
	if c := fb.callsCounters[0]; c.name != RecordsTotal || c.delta != 2500 || c.labels["kind"] != "accepted" {
		t.Fatalf("records counter = %#v", c)
	}
	if c := fb.callsCounters[1]; c.name != ChunksTotal || c.labels["status"] != "failed" {
		t.Fatalf("chunks counter = %#v", c)
	}
}

func TestSetBackendNilAndFlush(t *testing.T) {
	fb := install(t)
	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("flushCount = %d; nil SetBackend must keep the current backend", fb.flushCount)
	}
}
