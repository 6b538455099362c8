package genomcore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gcload/internal/records"
)

const (
	pathTimeSeries = "/v1/time-series"

	// DefaultChunkSize and DefaultMaxRetries are the platform upload defaults.
	DefaultChunkSize  = 1000
	DefaultMaxRetries = 3
	DefaultPageSize   = 100
)

// UploadOptions controls a chunked time-series upload.
type UploadOptions struct {
	// ChunkSize is the number of points per request; <= 0 uses 1000.
	ChunkSize int

	// MaxRetries is the number of retries per chunk after the first
	// attempt. 0 means no retries; negative values are treated as 0.
	MaxRetries int

	// Timer records per-chunk and total durations in the result.
	Timer bool

	// Parallelism is the number of chunks in flight; <= 1 uploads in order.
	Parallelism int
}

func (o UploadOptions) withDefaults() UploadOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 1
	}
	return o
}

// ChunkResult is the outcome of one chunk request.
type ChunkResult struct {
	Index      int // 0-based chunk number
	FirstIndex int // index of the chunk's first point in the batch
	Count      int
	Attempts   int
	Response   Response
	Duration   time.Duration // zero unless timing was requested
	Err        error
}

// UploadResult summarises a chunked upload. Chunks are in batch order.
type UploadResult struct {
	Points   int
	Chunks   []ChunkResult
	Accepted int // points in chunks the platform accepted
	Duration time.Duration
}

// Failed returns the chunks that were not accepted.
func (r *UploadResult) Failed() []ChunkResult {
	var out []ChunkResult
	for _, c := range r.Chunks {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// PartialUploadError reports that some chunks failed. Chunks not listed were
// accepted and stay committed on the platform.
type PartialUploadError struct {
	Failed []ChunkResult
	Total  int // number of chunks in the upload
}

func (e *PartialUploadError) Error() string {
	ranges := make([]string, len(e.Failed))
	for i, c := range e.Failed {
		ranges[i] = fmt.Sprintf("[%d,%d)", c.FirstIndex, c.FirstIndex+c.Count)
	}
	msg := fmt.Sprintf("genomcore: %d of %d chunks failed (points %s)", len(e.Failed), e.Total, strings.Join(ranges, " "))
	if len(e.Failed) > 0 {
		msg += ": " + e.Failed[0].Err.Error()
	}
	return msg
}

// Unwrap exposes every chunk error to errors.Is and errors.As.
func (e *PartialUploadError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, c := range e.Failed {
		errs[i] = c.Err
	}
	return errs
}

// CreateTimeSeries uploads batch in chunks. Each chunk is retried on its own;
// a chunk that still fails does not stop the others. When any chunk fails
// the result is returned together with a *PartialUploadError.
func (c *Client) CreateTimeSeries(ctx context.Context, batch records.Batch[records.TimeSeriesPoint], opt UploadOptions) (*UploadResult, error) {
	opt = opt.withDefaults()
	chunks := batch.Chunks(opt.ChunkSize)
	res := &UploadResult{Points: len(batch), Chunks: make([]ChunkResult, len(chunks))}
	start := c.now()

	send := func(i int) {
		ch := chunks[i]
		cr := ChunkResult{Index: i, FirstIndex: i * opt.ChunkSize, Count: len(ch)}
		t0 := c.now()
		cr.Response, cr.Attempts, cr.Err = c.do(ctx, http.MethodPost, pathTimeSeries, nil, ch, opt.MaxRetries)
		if opt.Timer {
			cr.Duration = c.now().Sub(t0)
		}
		fields := []zap.Field{
			zap.Int("chunk", i+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("points", cr.Count),
			zap.Int("attempts", cr.Attempts),
		}
		if opt.Timer {
			fields = append(fields, zap.Duration("took", cr.Duration))
		}
		if cr.Err != nil {
			c.log.Warn("time-series chunk failed", append(fields, zap.Error(cr.Err))...)
		} else {
			c.log.Info("time-series chunk uploaded", fields...)
		}
		res.Chunks[i] = cr
	}

	if opt.Parallelism <= 1 {
		for i := range chunks {
			send(i)
		}
	} else {
		// Each goroutine writes only its own slot of res.Chunks.
		var g errgroup.Group
		g.SetLimit(opt.Parallelism)
		for i := range chunks {
			g.Go(func() error {
				send(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	if opt.Timer {
		res.Duration = c.now().Sub(start)
		c.log.Info("time-series upload finished", zap.Int("points", res.Points), zap.Duration("took", res.Duration))
	}

	failed := res.Failed()
	for _, cr := range res.Chunks {
		if cr.Err == nil {
			res.Accepted += cr.Count
		}
	}
	if len(failed) > 0 {
		return res, &PartialUploadError{Failed: failed, Total: len(chunks)}
	}
	return res, nil
}

// QueryOptions selects one page of time-series points.
type QueryOptions struct {
	PageSize  int
	PageToken string
}

// TimeSeriesPage is one page of query results. Items are kept as generic
// objects because the query API returns measurements under point.val.
type TimeSeriesPage struct {
	Items         []map[string]any `json:"items"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// QueryTimeSeries fetches one page of points.
func (c *Client) QueryTimeSeries(ctx context.Context, opt QueryOptions) (*TimeSeriesPage, error) {
	if opt.PageSize <= 0 {
		opt.PageSize = DefaultPageSize
	}
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(opt.PageSize))
	if opt.PageToken != "" {
		q.Set("pageToken", opt.PageToken)
	}
	resp, _, err := c.do(ctx, http.MethodGet, pathTimeSeries, q, nil, c.maxRetries)
	if err != nil {
		return nil, err
	}
	var page TimeSeriesPage
	if len(resp.Body) > 0 {
		dec := json.NewDecoder(bytes.NewReader(resp.Body))
		dec.UseNumber()
		if err := dec.Decode(&page); err != nil {
			return nil, fmt.Errorf("genomcore: decode time-series page: %w", err)
		}
	}
	return &page, nil
}

// QueryAllTimeSeries follows nextPageToken until the last page or until
// maxPages pages were read (maxPages <= 0 means no limit). A token that was
// already followed is an error, so a server cycling its tokens cannot keep
// the loop running; the points read so far are returned with it.
func (c *Client) QueryAllTimeSeries(ctx context.Context, pageSize, maxPages int) ([]map[string]any, error) {
	var (
		out   []map[string]any
		token string
		seen  = map[string]struct{}{}
	)
	for pages := 0; maxPages <= 0 || pages < maxPages; pages++ {
		page, err := c.QueryTimeSeries(ctx, QueryOptions{PageSize: pageSize, PageToken: token})
		if err != nil {
			return out, err
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			break
		}
		if _, dup := seen[page.NextPageToken]; dup || page.NextPageToken == token {
			return out, fmt.Errorf("genomcore: page token %q repeated after %d pages", page.NextPageToken, pages+1)
		}
		seen[page.NextPageToken] = struct{}{}
		token = page.NextPageToken
	}
	return out, nil
}
