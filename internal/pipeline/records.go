package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"gcload/internal/config"
	"gcload/internal/datasource/file"
	"gcload/internal/genomcore"
	"gcload/internal/ledger"
	"gcload/internal/metrics"
	"gcload/internal/records"
	"gcload/internal/transformer"
)

// CreateRecords reads a JSON (or NDJSON) file of records and creates them
// against job.Template. Rows are sent as they are unless the job defines
// record groups. A file holding a single {"items": [...]} object is
// unwrapped and re-sent in the same envelope.
func (r *Runner) CreateRecords(ctx context.Context, job config.Job) (genomcore.Response, error) {
	rows, err := r.read(ctx, job)
	if err != nil {
		return genomcore.Response{}, err
	}
	if items, ok := unwrapItems(rows); ok {
		rows = items
		job.Record.Items = true
	}
	return r.shapeAndCreate(ctx, job, rows)
}

// ImportSheet reads one spreadsheet sheet, filters and derives values with
// the job steps, groups each row into a report-style record and creates the
// batch against job.Template.
func (r *Runner) ImportSheet(ctx context.Context, job config.Job) (genomcore.Response, error) {
	rows, err := r.read(ctx, job)
	if err != nil {
		return genomcore.Response{}, err
	}
	return r.shapeAndCreate(ctx, job, rows)
}

func (r *Runner) shapeAndCreate(ctx context.Context, job config.Job, rows []records.Row) (genomcore.Response, error) {
	var batch records.Batch[records.GenericRecord]
	err := r.stage(job.Name, metrics.StepTransform, func() error {
		kept, err := r.applySteps(job, rows)
		if err != nil {
			return err
		}
		if len(job.Record.Groups) > 0 {
			batch, err = transformer.NewGeneric(job.Record).Transform(kept)
		} else {
			batch, err = transformer.Passthrough{}.Transform(kept)
		}
		return err
	})
	if err != nil {
		return genomcore.Response{}, err
	}
	if len(batch) == 0 {
		return genomcore.Response{}, fmt.Errorf("%s: %w", job.Source.Path, errNothingToSubmit)
	}

	var body any = batch
	if job.Record.Items {
		body = records.ItemsBody[records.GenericRecord]{Items: batch}
	}

	var resp genomcore.Response
	start := r.now()
	err = r.stage(job.Name, metrics.StepSubmit, func() error {
		var err error
		resp, err = r.platform.CreateRecords(ctx, job.Template, body)
		return err
	})
	r.record(ctx, outcome(ledger.Entry{
		Operation: OpCreateRecords,
		Template:  job.Template,
		Count:     len(batch),
		Duration:  r.now().Sub(start),
	}, resp.Status, err))
	metrics.RecordRow(job.Name, "submitted", int64(len(batch)))
	if err != nil {
		metrics.RecordRow(job.Name, "rejected", int64(len(batch)))
		return resp, err
	}
	metrics.RecordRow(job.Name, "accepted", int64(len(batch)))
	r.log.Info("records created", zap.String("job", job.Name), zap.String("template", job.Template), zap.Int("records", len(batch)), zap.Int("status", resp.Status))
	return resp, nil
}

// unwrapItems recognises a source holding one {"items": [...]} envelope.
func unwrapItems(rows []records.Row) ([]records.Row, bool) {
	if len(rows) != 1 || len(rows[0]) != 1 {
		return nil, false
	}
	list, ok := rows[0]["items"].([]any)
	if !ok {
		return nil, false
	}
	out := make([]records.Row, 0, len(list))
	for _, it := range list {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, records.Row(m))
	}
	return out, true
}

// DeleteRecords deletes the records named by ids and by the ids listed in
// idsFile (optional). The body is built so that the same set of ids always
// produces the same request.
func (r *Runner) DeleteRecords(ctx context.Context, ids []string, idsFile string) (genomcore.Response, error) {
	const job = "delete_records"

	all := append([]string(nil), ids...)
	if idsFile != "" {
		err := r.stage(job, metrics.StepRead, func() error {
			fromFile, err := LoadIDs(idsFile)
			all = append(all, fromFile...)
			return err
		})
		if err != nil {
			return genomcore.Response{}, err
		}
	}

	var body records.DeleteBody
	err := r.stage(job, metrics.StepTransform, func() error {
		var err error
		body, err = transformer.Deletions(all)
		return err
	})
	if err != nil {
		return genomcore.Response{}, err
	}
	if len(body.Records) == 0 {
		return genomcore.Response{}, errNothingToSubmit
	}

	var resp genomcore.Response
	start := r.now()
	err = r.stage(job, metrics.StepSubmit, func() error {
		var err error
		resp, err = r.platform.DeleteRecords(ctx, body)
		return err
	})
	r.record(ctx, outcome(ledger.Entry{
		Operation: OpDeleteRecords,
		Count:     len(body.Records),
		Duration:  r.now().Sub(start),
	}, resp.Status, err))
	if err != nil {
		return resp, err
	}
	metrics.RecordRow(job, "deleted", int64(len(body.Records)))
	r.log.Info("records deleted", zap.Int("records", len(body.Records)), zap.Int("status", resp.Status))
	return resp, nil
}

// LoadIDs reads record ids from path. A .json file may hold an array of ids,
// an array of {"id": ...} objects, or a {"records": [{"id": ...}]} deletion
// body; any other file is read as one id per line.
func LoadIDs(path string) ([]string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return file.ReadList(path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &records.FileError{Path: path, Format: "json", Op: "open", Err: err}
	}
	b = bytes.TrimSpace(b)

	var plain []string
	if err := json.Unmarshal(b, &plain); err == nil {
		return plain, nil
	}
	var refs []records.DeletionRef
	if err := json.Unmarshal(b, &refs); err == nil {
		return records.DeleteBody{Records: refs}.IDs(), nil
	}
	var body records.DeleteBody
	if err := json.Unmarshal(b, &body); err == nil && body.Records != nil {
		return body.IDs(), nil
	}
	return nil, &records.FileError{Path: path, Format: "json", Op: "parse",
		Err: fmt.Errorf("expected an array of ids, an array of {\"id\"} objects or {\"records\": [...]}")}
}
