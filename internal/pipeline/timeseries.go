package pipeline

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"gcload/internal/analysis"
	"gcload/internal/config"
	"gcload/internal/genomcore"
	"gcload/internal/ledger"
	"gcload/internal/metrics"
	"gcload/internal/records"
	"gcload/internal/transformer"
)

// UploadTimeSeries reads a time-series CSV, maps every row onto a point and
// uploads the points in chunks. When some chunks fail the result is still
// returned, alongside a *genomcore.PartialUploadError; the ledger holds one
// entry per chunk either way.
func (r *Runner) UploadTimeSeries(ctx context.Context, job config.Job) (*genomcore.UploadResult, error) {
	rows, err := r.read(ctx, job)
	if err != nil {
		return nil, err
	}

	var batch records.Batch[records.TimeSeriesPoint]
	err = r.stage(job.Name, metrics.StepTransform, func() error {
		kept, err := r.applySteps(job, rows)
		if err != nil {
			return err
		}
		t := transformer.NewTimeSeries()
		if len(job.Schema.Fields) > 0 {
			t = transformer.TimeSeries{Schema: job.Schema}
		}
		batch, err = t.Transform(kept)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("%s: %w", job.Source.Path, errNothingToSubmit)
	}

	opt := genomcore.UploadOptions{
		ChunkSize:   job.Upload.ChunkSize,
		MaxRetries:  job.Upload.Retries(),
		Timer:       job.Upload.Timer,
		Parallelism: job.Upload.Parallelism,
	}
	var res *genomcore.UploadResult
	err = r.stage(job.Name, metrics.StepSubmit, func() error {
		var err error
		res, err = r.platform.CreateTimeSeries(ctx, batch, opt)
		return err
	})
	if res == nil {
		return nil, err
	}

	for _, c := range res.Chunks {
		r.record(ctx, outcome(ledger.Entry{
			Operation:  OpCreateTimeSeries,
			Chunk:      c.Index,
			FirstIndex: c.FirstIndex,
			Count:      c.Count,
			Duration:   c.Duration,
		}, c.Response.Status, c.Err))
		status := ledger.StatusAccepted
		if c.Err != nil {
			status = ledger.StatusFailed
		}
		metrics.RecordBatches(job.Name, status, 1)
	}
	metrics.RecordRow(job.Name, "submitted", int64(res.Points))
	metrics.RecordRow(job.Name, "accepted", int64(res.Accepted))
	metrics.RecordRow(job.Name, "rejected", int64(res.Points-res.Accepted))

	r.log.Info("time-series upload done",
		zap.String("job", job.Name),
		zap.Int("points", res.Points),
		zap.Int("accepted", res.Accepted),
		zap.Int("chunks", len(res.Chunks)),
		zap.Int("failed_chunks", len(res.Failed())),
	)
	return res, err
}

// Analysis is the outcome of AnalyzeTimeSeries.
type Analysis struct {
	Rows  []records.Row
	Stats analysis.Stats
}

// AnalyzeTimeSeries queries points, flattens them, sorts them by start and
// summarises their values. When csvOut is not nil the flat rows are written
// to it as CSV.
func (r *Runner) AnalyzeTimeSeries(ctx context.Context, pageSize, maxPages int, csvOut io.Writer) (*Analysis, error) {
	const job = "time_series_analysis"

	var points []map[string]any
	err := r.stage(job, metrics.StepRead, func() error {
		var err error
		points, err = r.platform.QueryAllTimeSeries(ctx, pageSize, maxPages)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordRow(job, "read", int64(len(points)))

	out := &Analysis{}
	err = r.stage(job, metrics.StepTransform, func() error {
		rows, err := analysis.Flatten(points)
		if err != nil {
			return err
		}
		analysis.SortByStart(rows)
		out.Rows = rows
		out.Stats = analysis.Summarize(analysis.Values(rows))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if csvOut != nil {
		if err := analysis.WriteCSV(csvOut, out.Rows); err != nil {
			return nil, fmt.Errorf("write csv: %w", err)
		}
	}
	r.log.Info("time-series analysis done", zap.Int("points", out.Stats.Count))
	return out, nil
}
