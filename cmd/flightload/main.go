package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/flightload/internal/config"
	"github.com/torosent/flightload/internal/dashboard"
	"github.com/torosent/flightload/internal/exporter"
	"github.com/torosent/flightload/internal/logging"
	"github.com/torosent/flightload/internal/metrics"
	"github.com/torosent/flightload/internal/output"
	"github.com/torosent/flightload/internal/report"
	"github.com/torosent/flightload/internal/runner"
	"github.com/torosent/flightload/internal/threshold"
	"github.com/torosent/flightload/internal/tracing"
)

const (
	exitOK          = 0
	exitFailure     = 1 // the run completed but its results could not be written
	exitSetup       = 2
	exitThreshold   = 3
	exitInterrupted = 130
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one load test and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		logger.Error("invalid thresholds", zap.Error(err))
		return exitSetup
	}

	runID := report.NewRunID()
	logger = logger.With(zap.String("run_id", runID), zap.String("mode", string(cfg.Mode)))

	smp, params, err := newSampler(cfg)
	if err != nil {
		logger.Error("sampler setup failed", zap.Error(err))
		return exitSetup
	}

	tp, err := tracing.Init(ctx, cfg.Tracing, tracing.RunInfo{ID: runID, Mode: string(cfg.Mode)})
	if err != nil {
		logger.Error("tracing setup failed", zap.Error(err))
		return exitSetup
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	requester, err := newRequester(cfg, tp)
	if err != nil {
		logger.Error("requester setup failed", zap.Error(err))
		return exitSetup
	}

	aggOpts := []metrics.Option{metrics.WithMaxErrorSamples(cfg.MaxErrorSamples)}
	if cfg.MetricsAddr != "" {
		exp := exporter.New(string(cfg.Mode), runID)
		srv, err := exp.Serve(context.Background(), cfg.MetricsAddr)
		if err != nil {
			logger.Error("metrics listener failed", zap.Error(err))
			return exitSetup
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics shutdown failed", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("url", srv.URL()))
		aggOpts = append(aggOpts, metrics.WithSink(exp))
	}
	agg := metrics.NewAggregator(aggOpts...)

	r, err := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		Duration:      cfg.Duration,
		Pacing:        cfg.Pacing,
		RatePerSecond: cfg.Rate,
		Seed:          cfg.Seed,
		Sampler:       smp,
		Requester:     requester,
		Aggregator:    agg,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("runner setup failed", zap.Error(err))
		return exitSetup
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(agg, dashboard.TestConfig{
			Mode:        string(cfg.Mode),
			TargetURL:   cfg.TargetURL,
			Concurrency: cfg.Concurrency,
			Duration:    cfg.Duration,
			Pacing:      cfg.Pacing,
			Rate:        cfg.Rate,
			Timeout:     cfg.Timeout,
			ConfigFile:  cfg.ConfigFile,
		}, stopRun)
		if err != nil {
			logger.Error("dashboard setup failed", zap.Error(err))
			return exitSetup
		}
	}

	// The reporter always runs so the HTML report has a throughput history.
	var progressOut io.Writer
	if !cfg.NoProgress && !cfg.JSONOutput && !cfg.Dashboard {
		progressOut = stdout
	}
	progress := output.NewProgressReporter(agg, progressInterval, progressOut)

	progress.Start()
	if dash != nil {
		dash.Start()
	}
	result := r.Run(runCtx)
	if dash != nil {
		dash.Stop()
	}
	progress.Stop()

	rep := report.Build(result.Snapshot, runInfo(cfg, runID, result, params))
	passed := true
	if len(thresholds) > 0 {
		passed = threshold.NewEvaluator(thresholds).Apply(&rep)
	}

	if err := writeResults(cfg, rep, progress.History(), stdout); err != nil {
		logger.Error("writing results failed", zap.Error(err))
		return exitFailure
	}
	logger.Info("results written", zap.String("output", cfg.Output))

	switch {
	case result.Interrupted:
		return exitInterrupted
	case !passed:
		logger.Warn("thresholds failed")
		return exitThreshold
	}
	return exitOK
}

// writeResults prints the summary and writes the JSON artifact and, when
// configured, the HTML report.
func writeResults(cfg *config.Config, rep report.Report, history []output.Sample, stdout io.Writer) error {
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, rep); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, rep)
	}

	if err := output.SaveJSON(context.Background(), cfg.Output, rep); err != nil {
		return err
	}

	if cfg.HTMLOutput == "" {
		return nil
	}
	f, err := os.Create(cfg.HTMLOutput)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, rep, history); err != nil {
		f.Close()
		return fmt.Errorf("generate html report: %w", err)
	}
	return f.Close()
}
