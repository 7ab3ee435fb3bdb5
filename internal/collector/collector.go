// Package collector drives the two-phase crawl: listing pages are
// expanded into detail-page tasks, then a bounded worker pool fetches
// and parses each detail page. Individual task failures are recorded
// and skipped; the run only aborts when the failure rate says the
// resulting dataset would be misleading.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"pokedex-pipeline/internal/dataset"
	"pokedex-pipeline/internal/pokedex"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("internal/collector")

type Options struct {
	Client *pokedex.Client
	// concurrent detail-page workers, defaults to 4
	Workers int
	// fraction of detail tasks allowed to fail before the run is
	// aborted, defaults to 0.5
	FailureRateLimit float64
	// wall-clock budget for the whole crawl, zero means unlimited
	RunTimeout time.Duration
}

// Report accumulates everything that went wrong during a run, detailed
// enough to diagnose without re-crawling.
type Report struct {
	// detail tasks discovered in phase 1
	Listed int
	// records kept after dedupe
	Collected int
	// successfully parsed records dropped as duplicate identifiers
	Duplicates int
	// tasks never finished before the deadline
	Abandoned int

	FetchErrors []*pokedex.FetchError
	ParseErrors []*pokedex.ParseError
}

// Failed counts detail tasks that produced no record.
func (r Report) Failed() int {
	return len(r.FetchErrors) + len(r.ParseErrors) + r.Abandoned
}

// RunAbortedError means the crawl produced too little to be trusted:
// the failure-rate threshold was exceeded or nothing was collected.
type RunAbortedError struct {
	Reason string
	Failed int
	Total  int
}

func (e *RunAbortedError) Error() string {
	return fmt.Sprintf("run aborted: %s (%d/%d detail tasks failed)", e.Reason, e.Failed, e.Total)
}

type run struct {
	opts     Options
	scrapeTs string

	tasks   chan pokedex.IndexEntry
	results chan dataset.RawRecord
	wg      *sync.WaitGroup

	mu          sync.Mutex
	fetchErrors []*pokedex.FetchError
	parseErrors []*pokedex.ParseError
}

// Collect crawls the seed listing pages and then every discovered
// detail page. The returned Report is meaningful even when the error
// is non-nil.
func Collect(ctx context.Context, opts Options, seeds []string) (dataset.RawDataset, Report, error) {
	ctx, span := tracer.Start(ctx, "Collect")
	defer span.End()

	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.FailureRateLimit <= 0 {
		opts.FailureRateLimit = 0.5
	}
	if opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.RunTimeout)
		defer cancel()
	}

	r := &run{
		opts:     opts,
		scrapeTs: time.Now().UTC().Format(time.RFC3339),
		tasks:    make(chan pokedex.IndexEntry),
		results:  make(chan dataset.RawRecord),
		wg:       &sync.WaitGroup{},
	}

	entries := r.crawlListings(ctx, seeds)
	seedFetchFailures := len(r.fetchErrors)
	seedParseFailures := len(r.parseErrors)

	report := Report{Listed: len(entries)}
	if len(entries) == 0 {
		report.FetchErrors = r.fetchErrors
		report.ParseErrors = r.parseErrors
		return nil, report, &RunAbortedError{Reason: "no detail tasks discovered"}
	}
	span.SetAttributes(attribute.Int("detail_tasks", len(entries)))

	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	go func() {
		defer close(r.tasks)
		for _, entry := range entries {
			select {
			case r.tasks <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		r.wg.Wait()
		close(r.results)
	}()

	var collected dataset.RawDataset
	for record := range r.results {
		collected = append(collected, record)
	}

	report.FetchErrors = r.fetchErrors
	report.ParseErrors = r.parseErrors

	detailFailed := (len(r.fetchErrors) - seedFetchFailures) + (len(r.parseErrors) - seedParseFailures)
	report.Abandoned = report.Listed - len(collected) - detailFailed
	detailFailed += report.Abandoned

	deduped := dedupe(collected)
	report.Duplicates = len(collected) - len(deduped)
	report.Collected = len(deduped)

	rate := float64(detailFailed) / float64(report.Listed)
	if rate > opts.FailureRateLimit {
		return nil, report, &RunAbortedError{
			Reason: fmt.Sprintf("failure rate %.2f exceeds limit %.2f", rate, opts.FailureRateLimit),
			Failed: detailFailed,
			Total:  report.Listed,
		}
	}
	if len(deduped) == 0 {
		return nil, report, &RunAbortedError{
			Reason: "no records collected",
			Failed: detailFailed,
			Total:  report.Listed,
		}
	}

	return deduped, report, nil
}

// crawlListings is phase 1: it expands each seed listing page into
// detail tasks, deduplicating overlapping listings by URL.
func (r *run) crawlListings(ctx context.Context, seeds []string) []pokedex.IndexEntry {
	ctx, span := tracer.Start(ctx, "crawlListings")
	defer span.End()

	var entries []pokedex.IndexEntry
	seen := map[string]bool{}
	for _, seed := range seeds {
		pageUrl := r.resolve(seed)

		body, _, err := r.opts.Client.Get(ctx, seed)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch listing page", "url", seed, "err", err)
			r.recordError(err)
			continue
		}
		pageEntries, err := pokedex.ParseListing(body, pageUrl)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse listing page", "url", seed, "err", err)
			r.recordError(err)
			continue
		}

		for _, entry := range pageEntries {
			if seen[entry.DetailURL] {
				continue
			}
			seen[entry.DetailURL] = true
			entries = append(entries, entry)
		}
	}
	return entries
}

func (r *run) worker(ctx context.Context) {
	defer r.wg.Done()

	for entry := range r.tasks {
		if ctx.Err() != nil {
			return
		}

		body, _, err := r.opts.Client.Get(ctx, entry.DetailURL)
		if err != nil {
			if ctx.Err() != nil {
				// deadline hit mid-flight, counted as abandoned
				return
			}
			slog.WarnContext(ctx, "failed to fetch detail page", "id", entry.ID, "err", err)
			r.recordError(err)
			continue
		}

		record, err := pokedex.ParseDetail(body, r.resolve(entry.DetailURL))
		if err != nil {
			slog.WarnContext(ctx, "failed to parse detail page", "id", entry.ID, "err", err)
			r.recordError(err)
			continue
		}
		record.Fields[dataset.FieldScrapeTS] = r.scrapeTs

		select {
		case r.results <- record:
		case <-ctx.Done():
			return
		}
	}
}

func (r *run) resolve(ref string) *url.URL {
	u, err := url.Parse(ref)
	if err != nil {
		return r.opts.Client.BaseUrl
	}
	return r.opts.Client.BaseUrl.ResolveReference(u)
}

func (r *run) recordError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fetchErr *pokedex.FetchError
	if errors.As(err, &fetchErr) {
		r.fetchErrors = append(r.fetchErrors, fetchErr)
		return
	}
	var parseErr *pokedex.ParseError
	if errors.As(err, &parseErr) {
		r.parseErrors = append(r.parseErrors, parseErr)
		return
	}
	// context cancellation and the like still count against the task
	r.parseErrors = append(r.parseErrors, &pokedex.ParseError{Field: err.Error()})
}

// dedupe drops records whose identifier was already seen; the first
// successfully parsed instance wins.
func dedupe(records dataset.RawDataset) dataset.RawDataset {
	seen := map[string]bool{}
	var out dataset.RawDataset
	for _, record := range records {
		if seen[record.ID] {
			continue
		}
		seen[record.ID] = true
		out = append(out, record)
	}
	return out
}
