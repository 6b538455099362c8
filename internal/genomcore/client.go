// Package genomcore is a small client for the Genomcore data-platform REST
// API: time-series upload and query, record creation and deletion.
//
// A Client is built once from configuration and passed to whoever needs it;
// there is no package-level client. Every request carries the bearer token,
// the refresh token and a fresh X-Request-Id. Transient failures (transport
// errors, 5xx, 429) are retried with exponential backoff; the backoff wait is
// injectable so tests run without sleeping.
package genomcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header names sent with every request.
const (
	HeaderRequestID    = "X-Request-Id"
	HeaderRefreshToken = "X-Refresh-Token"
)

// Config configures a Client.
//
// Zero values are given defaults:
//   - Timeout:        60s
//   - MaxRetries:     3
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
type Config struct {
	// BaseURL is the API root. When empty it is derived from Env.
	BaseURL string

	// Env selects a known deployment (dev, staging/pre, prod).
	Env string

	Token        string
	RefreshToken string

	// Timeout is the per-request timeout applied at the http.Client level.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for calls
	// that do not set their own. Negative disables retries.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Transport is an optional custom RoundTripper.
	Transport http.RoundTripper

	Logger *zap.Logger
}

// Client talks to one Genomcore deployment.
type Client struct {
	baseURL        *url.URL
	token          string
	refreshToken   string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	log            *zap.Logger

	// wait blocks for a backoff interval; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
	// now is the clock used for chunk timings.
	now func() time.Time
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("genomcore: token must not be empty")
	}
	raw := cfg.BaseURL
	if raw == "" {
		var err error
		if raw, err = BaseURLFor(cfg.Env); err != nil {
			return nil, err
		}
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("genomcore: invalid base URL %q", raw)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = 3
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:        u,
		token:          cfg.Token,
		refreshToken:   cfg.RefreshToken,
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		log:            log,
		wait:           sleepWithContext,
		now:            time.Now,
	}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Response is the raw outcome of a successful call.
type Response struct {
	Status    int             `json:"status"`
	Body      json.RawMessage `json:"body,omitempty"`
	RequestID string          `json:"requestId"`
}

// APIError is a non-2xx response, or the last retryable response once
// retries are exhausted.
type APIError struct {
	Method    string
	Path      string
	Status    int
	Body      string
	RequestID string
	Attempts  int
}

// maxErrorBody caps how much of a response body an APIError message quotes.
const maxErrorBody = 512

func (e *APIError) Error() string {
	msg := fmt.Sprintf("genomcore: %s %s: status %d", e.Method, e.Path, e.Status)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if b := strings.TrimSpace(e.Body); b != "" {
		if len(b) > maxErrorBody {
			cut := maxErrorBody
			for cut > 0 && !utf8.RuneStart(b[cut]) {
				cut--
			}
			b = b[:cut] + "..."
		}
		msg += ": " + b
	}
	return msg
}

// Retryable reports whether the status is one the client retries.
func (e *APIError) Retryable() bool { return isRetryableStatus(e.Status) }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// do sends one logical request, retrying transient failures up to retries
// times. body is marshalled once so it can be re-sent. attempts is the number
// of requests actually made.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, retries int) (resp Response, attempts int, err error) {
	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return Response{}, 0, fmt.Errorf("genomcore: encode %s %s body: %w", method, path, err)
		}
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	target := u.String()

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{}, attempts, err
		}
		attempts++

		reqID := uuid.NewString()
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return Response{}, attempts, fmt.Errorf("genomcore: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if c.refreshToken != "" {
			req.Header.Set(HeaderRefreshToken, c.refreshToken)
		}
		req.Header.Set(HeaderRequestID, reqID)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, attempts, ctx.Err()
			}
			lastErr = fmt.Errorf("genomcore: %s %s: %w", method, path, err)
		} else {
			b, rerr := io.ReadAll(res.Body)
			_ = res.Body.Close()
			switch {
			case rerr != nil:
				lastErr = fmt.Errorf("genomcore: read %s %s response: %w", method, path, rerr)
			case res.StatusCode >= 200 && res.StatusCode < 300:
				return Response{Status: res.StatusCode, Body: rawJSON(b), RequestID: reqID}, attempts, nil
			case !isRetryableStatus(res.StatusCode):
				return Response{}, attempts, &APIError{Method: method, Path: path, Status: res.StatusCode, Body: string(b), RequestID: reqID, Attempts: attempts}
			default:
				lastErr = &APIError{Method: method, Path: path, Status: res.StatusCode, Body: string(b), RequestID: reqID, Attempts: attempts}
			}
		}

		if attempt == retries {
			break
		}
		backoff := backoffDuration(c.initialBackoff, attempt, c.maxBackoff)
		c.log.Debug("retrying request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr),
		)
		if err := c.wait(ctx, backoff); err != nil {
			return Response{}, attempts, err
		}
	}
	return Response{}, attempts, lastErr
}

// rawJSON keeps a response body that is valid JSON; anything else is stored
// as a JSON string so Response always marshals.
func rawJSON(b []byte) json.RawMessage {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	s, _ := json.Marshal(string(b))
	return s
}

// isRetryableStatus treats 5xx and 429 as transient; everything else is
// final.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// backoffDuration returns initial * 2^attempt clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial > max {
			return max
		}
		return initial
	}
	if attempt > 30 {
		return max
	}
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// sleepWithContext waits for d but returns early with ctx's error if ctx is
// canceled first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
