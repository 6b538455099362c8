// Package config centralizes gcload configuration: platform credentials and
// process tunables sourced from the environment (optionally seeded from a
// .env file), and job files that describe how a source file is reshaped into
// platform records.
//
// Environment loading follows a testable pattern: LoadFromEnv takes a getenv
// function so tests can supply a map instead of touching the process
// environment.
//
//	cfg := config.LoadFromEnv(os.Getenv)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvToken          = "TOKEN"
	EnvRefreshToken   = "REFRESH_TOKEN"
	EnvEnvironment    = "ENV"
	EnvBaseURL        = "GENOMCORE_BASE_URL"
	EnvTimeout        = "GENOMCORE_TIMEOUT"
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDatadogAddr    = "DD_AGENT_ADDR"
	EnvLedger         = "GCLOAD_LEDGER"
)

// Config holds everything gcload reads from the environment. All fields are
// plain values so the struct can be copied freely after construction.
type Config struct {
	// Platform credentials and target environment.
	Token        string
	RefreshToken string
	Env          string

	// BaseURL overrides the URL derived from Env.
	BaseURL string
	// Timeout is the per-request timeout for platform calls.
	Timeout time.Duration

	// Metrics backend selection: "none", "pushgateway" or "datadog".
	MetricsBackend string
	PushgatewayURL string
	DatadogAddr    string

	// Ledger is the DSN of the submission ledger; empty disables it.
	Ledger string
}

// LoadFromEnv builds a Config from getenv. Unset or unparsable values fall
// back to defaults.
func LoadFromEnv(getenv func(string) string) Config {
	envOr := func(k, d string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return d
	}
	durationOr := func(k string, d time.Duration) time.Duration {
		v := strings.TrimSpace(getenv(k))
		if v == "" {
			return d
		}
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
		// bare integers are seconds
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		return d
	}

	return Config{
		Token:          strings.TrimSpace(getenv(EnvToken)),
		RefreshToken:   strings.TrimSpace(getenv(EnvRefreshToken)),
		Env:            strings.ToLower(envOr(EnvEnvironment, "")),
		BaseURL:        envOr(EnvBaseURL, ""),
		Timeout:        durationOr(EnvTimeout, 60*time.Second),
		MetricsBackend: envOr(EnvMetricsBackend, "none"),
		PushgatewayURL: envOr(EnvPushgatewayURL, "http://localhost:9091"),
		DatadogAddr:    envOr(EnvDatadogAddr, "127.0.0.1:8125"),
		Ledger:         envOr(EnvLedger, ""),
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win. A missing file is not an
// error unless required is true.
func LoadDotEnv(path string, required bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate reports missing credentials and malformed settings.
func (c Config) Validate() []Issue {
	var issues []Issue
	if c.Token == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: EnvToken, Message: "authentication token must be set"})
	}
	if c.RefreshToken == "" {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: EnvRefreshToken, Message: "refresh token is not set; long uploads may outlive the access token"})
	}
	if c.Env == "" && c.BaseURL == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: EnvEnvironment, Message: fmt.Sprintf("target environment must be set (or %s)", EnvBaseURL)})
	}
	if c.Timeout <= 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: EnvTimeout, Message: "timeout must be positive"})
	}
	switch c.MetricsBackend {
	case "", "none", "pushgateway", "datadog":
	default:
		issues = append(issues, Issue{Severity: SeverityWarning, Path: EnvMetricsBackend, Message: fmt.Sprintf("unknown metrics backend %q; metrics disabled", c.MetricsBackend)})
	}
	return issues
}
