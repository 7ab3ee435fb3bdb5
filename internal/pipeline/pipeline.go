// Package pipeline wires the full batch run together: crawl the
// catalog, stage the raw dataset, transform it and publish the
// processed artifact, journaling the outcome throughout.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pokedex-pipeline/internal/collector"
	"pokedex-pipeline/internal/pokedex"
	"pokedex-pipeline/internal/runlog"
	"pokedex-pipeline/internal/storage"
	"pokedex-pipeline/internal/transform"
	"pokedex-pipeline/lib/sqliteutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/pipeline")

type Config struct {
	BaseUrl      string   `json:"base_url"`
	ListingPaths []string `json:"listing_paths"`

	UserAgent             string            `json:"user_agent"`
	Headers               map[string]string `json:"headers"`
	RequestTimeoutSeconds int               `json:"request_timeout_seconds"`
	RetryCount            int               `json:"retry_count"`
	RetryWaitMs           int               `json:"retry_wait_ms"`
	RetryMaxWaitMs        int               `json:"retry_max_wait_ms"`
	MinRequestIntervalMs  int               `json:"min_request_interval_ms"`

	Workers           int     `json:"workers"`
	FailureRateLimit  float64 `json:"failure_rate_limit"`
	RunTimeoutSeconds int     `json:"run_timeout_seconds"`

	// staging location for the raw artifact
	RawDataPath string `json:"raw_data_path"`
	// publish location for the processed artifact
	ProcessedDataPath string `json:"processed_data_path"`
	// optional sqlite run journal
	JournalPath string `json:"journal_path"`
}

func (c Config) newClient() (*pokedex.Client, error) {
	return pokedex.NewClient(pokedex.ClientOptions{
		BaseUrl:            c.BaseUrl,
		UserAgent:          c.UserAgent,
		Headers:            c.Headers,
		Timeout:            time.Duration(c.RequestTimeoutSeconds) * time.Second,
		RetryCount:         c.RetryCount,
		RetryWaitTime:      time.Duration(c.RetryWaitMs) * time.Millisecond,
		RetryMaxWaitTime:   time.Duration(c.RetryMaxWaitMs) * time.Millisecond,
		MinRequestInterval: time.Duration(c.MinRequestIntervalMs) * time.Millisecond,
	})
}

type journalHandle struct {
	journal runlog.Journal
	runId   int64
	ok      bool
}

// the journal is best-effort: a broken journal must never fail a run
func openJournal(ctx context.Context, path string) journalHandle {
	if path == "" {
		return journalHandle{}
	}
	db, err := sqliteutil.OpenDB(runlog.Schema, path)
	if err != nil {
		slog.WarnContext(ctx, "failed to open run journal", "path", path, "err", err)
		return journalHandle{}
	}
	journal := runlog.New(db)
	runId, err := journal.Begin(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to begin journal run", "err", err)
		return journalHandle{}
	}
	return journalHandle{journal: journal, runId: runId, ok: true}
}

func (h journalHandle) finish(ctx context.Context, report collector.Report, abortReason string) {
	if !h.ok {
		return
	}
	err := h.journal.Finish(ctx, h.runId, report, abortReason)
	if err != nil {
		slog.WarnContext(ctx, "failed to finish journal run", "err", err)
	}
}

// Run executes the full batch pipeline. Fatal errors (run aborted,
// transform invariant violated) are returned after journaling; the
// processed artifact is never written on a fatal error.
func Run(ctx context.Context, cfg Config) error {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	client, err := cfg.newClient()
	if err != nil {
		return err
	}
	journal := openJournal(ctx, cfg.JournalPath)

	start := time.Now()
	raw, report, err := collector.Collect(ctx, collector.Options{
		Client:           client,
		Workers:          cfg.Workers,
		FailureRateLimit: cfg.FailureRateLimit,
		RunTimeout:       time.Duration(cfg.RunTimeoutSeconds) * time.Second,
	}, cfg.ListingPaths)
	slog.InfoContext(ctx, "collection finished",
		"listed", report.Listed,
		"collected", report.Collected,
		"failed", report.Failed(),
		"seconds", time.Since(start).Seconds(),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		journal.finish(ctx, report, err.Error())
		return err
	}

	err = storage.SaveRaw(raw, cfg.RawDataPath)
	if err != nil {
		journal.finish(ctx, report, err.Error())
		return err
	}
	slog.InfoContext(ctx, "raw dataset staged", "path", cfg.RawDataPath, "records", len(raw))

	processed, err := transform.Transform(ctx, raw)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		journal.finish(ctx, report, err.Error())
		return err
	}

	err = storage.SaveProcessed(processed, cfg.ProcessedDataPath)
	if err != nil {
		journal.finish(ctx, report, err.Error())
		return err
	}
	slog.InfoContext(ctx, "processed dataset published",
		"path", cfg.ProcessedDataPath,
		"records", len(processed),
	)

	journal.finish(ctx, report, "")
	return nil
}

// Scrape runs only the crawl and stages the raw artifact.
func Scrape(ctx context.Context, cfg Config) (collector.Report, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	client, err := cfg.newClient()
	if err != nil {
		return collector.Report{}, err
	}
	journal := openJournal(ctx, cfg.JournalPath)

	raw, report, err := collector.Collect(ctx, collector.Options{
		Client:           client,
		Workers:          cfg.Workers,
		FailureRateLimit: cfg.FailureRateLimit,
		RunTimeout:       time.Duration(cfg.RunTimeoutSeconds) * time.Second,
	}, cfg.ListingPaths)
	if err != nil {
		journal.finish(ctx, report, err.Error())
		return report, err
	}

	err = storage.SaveRaw(raw, cfg.RawDataPath)
	if err != nil {
		journal.finish(ctx, report, err.Error())
		return report, err
	}
	journal.finish(ctx, report, "")
	return report, nil
}

// TransformOnly re-runs the transformation from the staged raw
// artifact without touching the network.
func TransformOnly(ctx context.Context, cfg Config) error {
	ctx, span := tracer.Start(ctx, "TransformOnly")
	defer span.End()

	raw, err := storage.LoadRaw(cfg.RawDataPath)
	if err != nil {
		return err
	}
	processed, err := transform.Transform(ctx, raw)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err = storage.SaveProcessed(processed, cfg.ProcessedDataPath)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "processed dataset published",
		"path", cfg.ProcessedDataPath,
		"records", len(processed),
	)
	return nil
}

// IsFatal reports whether the error is one of the run-level failures
// as opposed to an environmental one (I/O, config).
func IsFatal(err error) bool {
	var aborted *collector.RunAbortedError
	var transformErr *transform.TransformError
	return errors.As(err, &aborted) || errors.As(err, &transformErr)
}
