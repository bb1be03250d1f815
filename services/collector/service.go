// Package collector orchestrates one invoice collection job:
// idempotency cache lookup, retried scrape, CSV output, run history.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"zbooks-collector/lib/idemcache"
	"zbooks-collector/lib/retry"
	"zbooks-collector/lib/scrapers/zbooks"
	"zbooks-collector/lib/telemetry"
)

var tracer = telemetry.Tracer("zbooks-collector.services.collector")

// PageDriver is the browser-facing capability the job runner drives,
// satisfied by *zbooks.Client.
type PageDriver interface {
	NavigateToInvoices(ctx context.Context) error
	ListRows(ctx context.Context, cursor zbooks.Cursor) (rows []zbooks.InvoiceRecord, next zbooks.Cursor, done bool, err error)
}

type Options struct {
	// OutputDir is where CSVs and the idempotency mapping live,
	// defaults to "collected_data".
	OutputDir string
	// CacheTTL defaults to idemcache.DefaultTTL.
	CacheTTL time.Duration
	Retry    retry.Options
}

type JobResult struct {
	RecordCount int
	OutputPath  string
}

type Service struct {
	driver  PageDriver
	cache   *idemcache.Cache
	history *HistoryStore
	opts    Options
}

// NewService wires a job runner. history may be nil to skip run
// recording.
func NewService(driver PageDriver, history *HistoryStore, opts Options) Service {
	if opts.OutputDir == "" {
		opts.OutputDir = "collected_data"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry.MaxAttempts = 3
	}
	if opts.Retry.BaseDelay == 0 {
		opts.Retry.BaseDelay = time.Second
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = zbooks.IsTransient
	}

	return Service{
		driver:  driver,
		cache:   idemcache.New(filepath.Join(opts.OutputDir, ".idem_cache.json"), opts.CacheTTL),
		history: history,
		opts:    opts,
	}
}

// Run executes one collection job. A non-empty idempotencyKey
// deduplicates equivalent runs within the cache TTL: a fresh cache
// entry short-circuits the job without touching the page, a miss
// scrapes, writes the key-specific CSV and records the summary. An
// empty key bypasses the cache entirely.
func (s Service) Run(ctx context.Context, idempotencyKey string) (JobResult, error) {
	ctx, span := tracer.Start(ctx, "service:Run")
	defer span.End()
	span.SetAttributes(attribute.String("idempotency_key", idempotencyKey))

	if idempotencyKey != "" {
		entry, hit := s.cache.Lookup(idempotencyKey)
		if hit {
			slog.InfoContext(
				ctx, "idempotency cache hit, reusing prior run",
				"key", idempotencyKey,
				"records", entry.Summary.RecordCount,
				"output", entry.Summary.OutputPath,
			)
			span.AddEvent("idempotency cache hit")
			return JobResult{
				RecordCount: entry.Summary.RecordCount,
				OutputPath:  entry.Summary.OutputPath,
			}, nil
		}
	}

	records, err := retry.Do(ctx, s.opts.Retry, s.scrape)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		return JobResult{}, fmt.Errorf("scrape invoices: %w", err)
	}

	outputPath := s.outputPath(idempotencyKey)
	err = writeCsv(outputPath, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write csv")
		return JobResult{}, fmt.Errorf("write %s: %w", outputPath, err)
	}

	result := JobResult{
		RecordCount: len(records),
		OutputPath:  outputPath,
	}

	if idempotencyKey != "" {
		err = s.cache.Store(idempotencyKey, idemcache.Summary{
			RecordCount: result.RecordCount,
			OutputPath:  result.OutputPath,
		})
		if err != nil {
			// a broken cache only costs us an extra scrape next time
			slog.WarnContext(ctx, "failed to store idempotency entry", "key", idempotencyKey, "err", err)
		}
	}
	if s.history != nil {
		err = s.history.RecordRun(ctx, idempotencyKey, time.Now(), records, outputPath)
		if err != nil {
			slog.WarnContext(ctx, "failed to record run history", "err", err)
		}
	}

	slog.InfoContext(
		ctx, "collection complete",
		"records", result.RecordCount,
		"output", result.OutputPath,
	)
	return result, nil
}

func (s Service) scrape(ctx context.Context) ([]zbooks.InvoiceRecord, error) {
	ctx, span := tracer.Start(ctx, "service:scrape")
	defer span.End()

	err := s.driver.NavigateToInvoices(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to navigate to invoices")
		return nil, err
	}

	var all []zbooks.InvoiceRecord
	cursor := zbooks.Cursor(0)
	for {
		rows, next, done, err := s.driver.ListRows(ctx, cursor)
		if err != nil {
			span.SetStatus(codes.Error, "failed to list invoice rows")
			return nil, err
		}
		all = append(all, rows...)

		slog.DebugContext(ctx, "processed invoice page", "cursor", cursor, "rows", len(rows), "done", done)
		if done {
			break
		}
		cursor = next
	}

	span.SetAttributes(attribute.Int("record_count", len(all)))
	return all, nil
}

func (s Service) outputPath(idempotencyKey string) string {
	if idempotencyKey == "" {
		return filepath.Join(s.opts.OutputDir, "invoices.csv")
	}
	return filepath.Join(s.opts.OutputDir, fmt.Sprintf("invoices_%s.csv", idempotencyKey))
}
