package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gcload/internal/config"
	"gcload/internal/genomcore"
	"gcload/internal/ledger"
	"gcload/internal/metrics"
	"gcload/internal/metrics/datadog"
	"gcload/internal/metrics/prompush"
	"gcload/internal/pipeline"
)

// app holds what the commands share: resolved configuration, the logger
// and the lazily opened ledger. The function fields are swapped in tests.
type app struct {
	envFile        string
	verbose        bool
	metricsBackend string
	ledgerDSN      string
	timeout        time.Duration

	getenv      func(string) string
	buildLogger func(verbose bool) (*zap.Logger, error)
	newPlatform func(cfg config.Config, log *zap.Logger) (pipeline.Platform, error)

	log    *zap.Logger
	cfg    config.Config
	ledger ledger.Ledger
	closed bool
}

func newApp() *app {
	return &app{
		getenv:      os.Getenv,
		buildLogger: productionLogger,
		newPlatform: platformClient,
		log:         zap.NewNop(),
	}
}

func productionLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func platformClient(cfg config.Config, log *zap.Logger) (pipeline.Platform, error) {
	c, err := genomcore.New(genomcore.Config{
		BaseURL:      cfg.BaseURL,
		Env:          cfg.Env,
		Token:        cfg.Token,
		RefreshToken: cfg.RefreshToken,
		Timeout:      cfg.Timeout,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gcload",
		Short:         "Load local files into the Genomcore data platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "file of KEY=VALUE pairs loaded into the environment")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")
	pf.StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (overrides "+config.EnvMetricsBackend+")")
	pf.StringVar(&a.ledgerDSN, "ledger", "", "submission ledger DSN, e.g. sqlite:///tmp/gcload.db (overrides "+config.EnvLedger+")")
	pf.DurationVar(&a.timeout, "timeout", 0, "per-request timeout (overrides "+config.EnvTimeout+")")

	root.AddCommand(newTimeSeriesCmd(a), newRecordsCmd(a), newJobCmd(a))
	return root
}

// setup builds the logger, resolves configuration and installs the metrics
// backend. It runs before every subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	log, err := a.buildLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.log = log

	if err := config.LoadDotEnv(a.envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}
	a.cfg = config.LoadFromEnv(a.getenv)
	if a.metricsBackend != "" {
		a.cfg.MetricsBackend = a.metricsBackend
	}
	if a.ledgerDSN != "" {
		a.cfg.Ledger = a.ledgerDSN
	}
	if a.timeout > 0 {
		a.cfg.Timeout = a.timeout
	}

	a.setupMetrics(strings.ReplaceAll(cmd.CommandPath(), " ", "_"))
	return nil
}

// setupMetrics installs the configured backend. A backend that fails to
// initialize is logged and metrics stay disabled.
func (a *app) setupMetrics(job string) {
	var (
		b   metrics.Backend
		err error
	)
	switch a.cfg.MetricsBackend {
	case "", "none":
		a.log.Debug("metrics disabled")
		return
	case "pushgateway":
		b, err = prompush.NewBackend(job, a.cfg.PushgatewayURL)
	case "datadog":
		var tags []string
		if a.cfg.Env != "" {
			tags = append(tags, "env:"+a.cfg.Env)
		}
		b, err = datadog.NewBackend(datadog.Config{Addr: a.cfg.DatadogAddr, Namespace: "gcload.", GlobalTags: tags})
	default:
		a.log.Warn("unknown metrics backend; metrics disabled", zap.String("backend", a.cfg.MetricsBackend))
		return
	}
	if err != nil {
		a.log.Warn("metrics backend init failed; metrics disabled", zap.String("backend", a.cfg.MetricsBackend), zap.Error(err))
		return
	}
	metrics.SetBackend(b)
	a.log.Debug("metrics enabled", zap.String("backend", a.cfg.MetricsBackend), zap.String("job", job))
}

// runner validates the platform credentials, opens the ledger and returns a
// pipeline runner bound to them.
func (a *app) runner(ctx context.Context) (*pipeline.Runner, error) {
	issues := a.cfg.Validate()
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			a.log.Warn("config", zap.String("path", iss.Path), zap.String("message", iss.Message))
		}
	}
	if config.HasErrors(issues) {
		var errs []error
		for _, iss := range issues {
			if iss.Severity == config.SeverityError {
				errs = append(errs, iss)
			}
		}
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	p, err := a.newPlatform(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	if a.ledger == nil {
		l, err := ledger.Open(ctx, a.cfg.Ledger)
		if err != nil {
			return nil, err
		}
		a.ledger = l
	}
	r := pipeline.New(p, pipeline.WithLedger(a.ledger), pipeline.WithLogger(a.log))
	a.log.Debug("runner ready", zap.String("run_id", r.RunID()))
	return r, nil
}

// close flushes metrics, closes the ledger and syncs the logger. It is safe
// to call more than once.
func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true
	if err := metrics.Flush(); err != nil {
		a.log.Warn("metrics flush failed", zap.Error(err))
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.log.Warn("ledger close failed", zap.Error(err))
		}
		a.ledger = nil
	}
	_ = a.log.Sync()
}

// printIssues writes job issues one per line.
func printIssues(w io.Writer, issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
}

// checkJob prints job issues to stderr and fails on errors.
func checkJob(cmd *cobra.Command, job config.Job) error {
	issues := config.ValidateJob(job)
	printIssues(cmd.ErrOrStderr(), issues)
	if config.HasErrors(issues) {
		return fmt.Errorf("job %q is invalid", job.Name)
	}
	return nil
}

// writeBody prints a raw platform response body followed by a newline.
func writeBody(w io.Writer, resp genomcore.Response) error {
	if len(resp.Body) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s\n", resp.Body)
	return err
}
