package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/storm/internal/config"
	"github.com/FairForge/storm/internal/loadtest"
	"github.com/FairForge/storm/internal/metrics"
	"github.com/FairForge/storm/internal/submit"
)

// runStorm generates the jobs, dispatches them and prints the summary to out.
// Per-job failures are part of the report, not an error.
func runStorm(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	if cfg.API.Token == "" {
		logger.Warn("no bearer token configured; the API will likely reject every submission")
	}

	client, err := submit.NewClient(submit.Config{
		BaseURL:     cfg.API.URL,
		Token:       cfg.API.Token,
		Timeout:     cfg.API.Timeout,
		ContentType: cfg.API.ContentType,
		MaxConns:    cfg.Run.Workers,
	}, logger.Named("submit"))
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}

	collector := metrics.NewCollector()
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Start(cfg.Metrics.Addr, collector, logger.Named("metrics"))
		if err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	mode := loadtest.ModeInline
	if cfg.Run.URLMode {
		mode = loadtest.ModePresignedURL
	}
	jobs := loadtest.GenerateJobs(cfg.Run.Count, cfg.Run.File, mode, cfg.Run.AdditionalFields)

	progress := loadtest.NewProgressPrinter(out)
	dispatcher := loadtest.NewDispatcher(&loadtest.Config{
		Workers:  cfg.Run.Workers,
		Progress: progress.Update,
		Recorder: collector,
		Logger:   logger.Named("dispatcher"),
	}, loadtest.NewEncoder(client))

	logger.Info("starting run",
		zap.String("api_url", cfg.API.URL),
		zap.String("file", cfg.Run.File),
		zap.Int("count", cfg.Run.Count),
		zap.String("mode", mode.String()),
		zap.Duration("timeout", cfg.API.Timeout))

	results := dispatcher.RunAll(ctx, jobs)
	progress.Done()

	summary := loadtest.Summarize(results)
	if summary.FailureCount > 0 {
		logger.Warn("some submissions failed",
			zap.Int("failed", summary.FailureCount),
			zap.Int("total", summary.Total))
	}

	return loadtest.NewReport(out).Render(summary)
}
