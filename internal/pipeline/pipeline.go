// Package pipeline runs the loader's one-pass jobs: read a source file,
// transform its rows into target records, submit them to the platform and
// hand back the platform's response. Each stage is timed through the metrics
// package, and every submission is written to the ledger.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gcload/internal/config"
	"gcload/internal/genomcore"
	"gcload/internal/ledger"
	"gcload/internal/metrics"
	"gcload/internal/parser"
	"gcload/internal/records"
	"gcload/internal/transformer"
)

// Platform is the subset of the Genomcore client the runners use.
type Platform interface {
	CreateTimeSeries(ctx context.Context, batch records.Batch[records.TimeSeriesPoint], opt genomcore.UploadOptions) (*genomcore.UploadResult, error)
	CreateRecords(ctx context.Context, template string, body any) (genomcore.Response, error)
	DeleteRecords(ctx context.Context, body records.DeleteBody) (genomcore.Response, error)
	QueryAllTimeSeries(ctx context.Context, pageSize, maxPages int) ([]map[string]any, error)
}

var _ Platform = (*genomcore.Client)(nil)

// Ledger operations.
const (
	OpCreateTimeSeries = "create_time_series"
	OpCreateRecords    = "create_records"
	OpDeleteRecords    = "delete_records"
)

// Runner executes jobs against one platform.
type Runner struct {
	platform Platform
	ledger   ledger.Ledger
	log      *zap.Logger
	runID    string
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLedger records submissions in l.
func WithLedger(l ledger.Ledger) Option {
	return func(r *Runner) {
		if l != nil {
			r.ledger = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithRunID fixes the run id written to the ledger.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// New returns a Runner. Without options it logs nowhere and keeps no ledger.
func New(p Platform, opts ...Option) *Runner {
	r := &Runner{
		platform: p,
		ledger:   ledger.Nop{},
		log:      zap.NewNop(),
		runID:    uuid.NewString(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With(zap.String("run_id", r.runID))
	return r
}

// RunID identifies this runner's submissions in the ledger.
func (r *Runner) RunID() string { return r.runID }

// stage runs fn and records it as step of job.
func (r *Runner) stage(job, step string, fn func() error) error {
	start := r.now()
	err := fn()
	d := r.now().Sub(start)
	metrics.RecordStep(job, step, err, d)
	if err != nil {
		r.log.Error("step failed", zap.String("job", job), zap.String("step", step), zap.Duration("took", d), zap.Error(err))
	} else {
		r.log.Debug("step done", zap.String("job", job), zap.String("step", step), zap.Duration("took", d))
	}
	return err
}

// read parses the job source and runs its row steps.
func (r *Runner) read(ctx context.Context, job config.Job) ([]records.Row, error) {
	var rows []records.Row
	err := r.stage(job.Name, metrics.StepRead, func() error {
		var err error
		rows, err = parser.ParseFile(ctx, job.Source.Path, job.Source.Format, parser.Options{
			Sheet:     job.Source.Sheet,
			HeaderMap: job.Source.HeaderMap,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordRow(job.Name, "read", int64(len(rows)))
	r.log.Info("source read", zap.String("job", job.Name), zap.String("path", job.Source.Path), zap.Int("rows", len(rows)))
	return rows, nil
}

func (r *Runner) applySteps(job config.Job, rows []records.Row) ([]records.Row, error) {
	chain, err := transformer.FromSteps(job.Steps)
	if err != nil {
		return nil, err
	}
	out, err := chain.Apply(rows)
	if err != nil {
		return nil, err
	}
	if dropped := len(rows) - len(out); dropped > 0 {
		metrics.RecordRow(job.Name, "filtered", int64(dropped))
		r.log.Info("rows dropped by steps", zap.String("job", job.Name), zap.Int("dropped", dropped), zap.Int("kept", len(out)))
	}
	return out, nil
}

// record writes e to the ledger. Ledger failures are logged, not returned:
// the submission already happened and its outcome is what the caller needs.
func (r *Runner) record(ctx context.Context, e ledger.Entry) {
	e.RunID = r.runID
	if e.At.IsZero() {
		e.At = r.now()
	}
	if err := r.ledger.Record(ctx, e); err != nil {
		r.log.Warn("ledger write failed", zap.String("operation", e.Operation), zap.Int("chunk", e.Chunk), zap.Error(err))
	}
}

// outcome fills the status fields of a ledger entry from a call's error.
func outcome(e ledger.Entry, status int, err error) ledger.Entry {
	if err != nil {
		e.Status = ledger.StatusFailed
		e.Error = err.Error()
		if s := genomcore.StatusOf(err); s != 0 {
			status = s
		}
	} else {
		e.Status = ledger.StatusAccepted
	}
	e.HTTPStatus = status
	return e
}

// IsInputError reports whether err comes from the input file rather than
// from the platform.
func IsInputError(err error) bool {
	return records.IsFileError(err) || records.IsFormatError(err)
}

var errNothingToSubmit = errors.New("no records to submit")
