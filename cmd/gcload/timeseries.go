package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gcload/internal/config"
	"gcload/internal/genomcore"
)

func newTimeSeriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Upload and query time-series points",
	}
	cmd.AddCommand(newTimeSeriesUploadCmd(a), newTimeSeriesQueryCmd(a))
	return cmd
}

func newTimeSeriesUploadCmd(a *app) *cobra.Command {
	var (
		file, jobPath string
		upload        config.Upload
		maxRetries    int
		dedup         bool
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a time-series CSV in chunks",
		Long: `Reads a CSV whose headers are meta.userId, meta.source, meta.metric,
meta.externalId, meta.batch, point.start, point.end and point.value, and
uploads one point per row. Points are sent in chunks; failed chunks are
retried with exponential backoff and reported without stopping the upload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job := config.DefaultTimeSeriesJob(file)
			if jobPath != "" {
				var err error
				if job, err = config.LoadJob(jobPath); err != nil {
					return err
				}
				if file != "" {
					job.Source.Path = file
				}
			}
			f := cmd.Flags()
			if f.Changed("chunk-size") {
				job.Upload.ChunkSize = upload.ChunkSize
			}
			if f.Changed("max-retries") {
				job.Upload.MaxRetries = &maxRetries
			}
			if f.Changed("parallelism") {
				job.Upload.Parallelism = upload.Parallelism
			}
			if f.Changed("timer") {
				job.Upload.Timer = upload.Timer
			}
			if dedup {
				job.Steps = append(job.Steps, config.Step{Kind: "dedup"})
			}
			if err := checkJob(cmd, job); err != nil {
				return err
			}

			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			res, err := r.UploadTimeSeries(cmd.Context(), job)
			if res != nil {
				if perr := writeUploadResult(cmd, res, job.Upload.Timer); perr != nil {
					return errors.Join(err, perr)
				}
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "time-series CSV file")
	f.StringVar(&jobPath, "job", "", "job file (YAML or JSON) replacing the built-in time-series job")
	f.IntVar(&upload.ChunkSize, "chunk-size", config.DefaultChunkSize, "points per request")
	f.IntVar(&maxRetries, "max-retries", config.DefaultMaxRetries, "retries per chunk after the first attempt; 0 disables retries")
	f.IntVar(&upload.Parallelism, "parallelism", 1, "chunks in flight at once")
	f.BoolVar(&upload.Timer, "timer", true, "report how long each chunk took")
	f.BoolVar(&dedup, "dedup", false, "drop rows repeated earlier in the file")
	return cmd
}

type chunkReport struct {
	Index      int             `json:"index"`
	FirstIndex int             `json:"first_index"`
	Points     int             `json:"points"`
	Status     int             `json:"status,omitempty"`
	Attempts   int             `json:"attempts"`
	DurationMS int64           `json:"duration_ms,omitempty"`
	Error      string          `json:"error,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
}

type uploadReport struct {
	Points   int           `json:"points"`
	Accepted int           `json:"accepted"`
	Chunks   []chunkReport `json:"chunks"`
}

// writeUploadResult prints one JSON document describing every chunk.
func writeUploadResult(cmd *cobra.Command, res *genomcore.UploadResult, timer bool) error {
	rep := uploadReport{Points: res.Points, Accepted: res.Accepted, Chunks: make([]chunkReport, 0, len(res.Chunks))}
	for _, c := range res.Chunks {
		cr := chunkReport{
			Index:      c.Index,
			FirstIndex: c.FirstIndex,
			Points:     c.Count,
			Status:     c.Response.Status,
			Attempts:   c.Attempts,
			Response:   c.Response.Body,
		}
		if timer {
			cr.DurationMS = c.Duration.Milliseconds()
		}
		if c.Err != nil {
			cr.Error = c.Err.Error()
			if s := genomcore.StatusOf(c.Err); s != 0 {
				cr.Status = s
			}
		}
		rep.Chunks = append(rep.Chunks, cr)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func newTimeSeriesQueryCmd(a *app) *cobra.Command {
	var (
		pageSize, maxPages int
		csvPath            string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query time-series points and print summary statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}

			var csvOut io.Writer
			if csvPath != "" {
				f, err := os.Create(csvPath)
				if err != nil {
					return fmt.Errorf("create csv: %w", err)
				}
				defer f.Close()
				csvOut = f
			}
			res, err := r.AnalyzeTimeSeries(cmd.Context(), pageSize, maxPages, csvOut)
			if err != nil {
				return err
			}
			return res.Stats.WriteText(cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.IntVar(&pageSize, "page-size", genomcore.DefaultPageSize, "points per page")
	f.IntVar(&maxPages, "max-pages", 1, "pages to fetch; 0 fetches until the last page")
	f.StringVar(&csvPath, "csv", "", "also write the flattened points to this CSV file")
	return cmd
}
