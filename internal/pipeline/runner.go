// Package pipeline implements the sequential category collection loop.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/storecrawl/topcharts/internal/chart"
	"github.com/storecrawl/topcharts/internal/enrich"
	"github.com/storecrawl/topcharts/internal/genre"
	"github.com/storecrawl/topcharts/internal/notify"
	"github.com/storecrawl/topcharts/internal/report"
	"github.com/storecrawl/topcharts/internal/telemetry"
)

// Config controls Runner behavior.
type Config struct {
	RunID          string
	Country        string
	Limit          int
	OutputTemplate string
	ContentType    string
}

// Summary reports what a run produced.
type Summary struct {
	Categories int
	Written    int
	Skipped    int
	Rows       int
}

// Runner walks the category list and produces one table per category.
type Runner struct {
	resolver *genre.Resolver
	source   chart.Source
	looker   Looker
	enricher enrich.Enricher
	blobs    BlobStore
	sink     RowSink
	notifier notify.Notifier
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Runner. The sink may be nil; a nil enricher or
// notifier falls back to the no-op implementation.
func New(
	resolver *genre.Resolver,
	source chart.Source,
	looker Looker,
	enricher enrich.Enricher,
	blobs BlobStore,
	sink RowSink,
	notifier notify.Notifier,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if enricher == nil {
		enricher = enrich.Noop{}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/csv"
	}
	return &Runner{
		resolver: resolver,
		source:   source,
		looker:   looker,
		enricher: enricher,
		blobs:    blobs,
		sink:     sink,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run processes categories in input order. Failures stay scoped to
// their category; the only run-level error is context cancellation.
func (r *Runner) Run(ctx context.Context, categories []string) (Summary, error) {
	summary := Summary{Categories: len(categories)}
	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rows, written, err := r.processCategory(ctx, category)
		if err != nil {
			return summary, err
		}
		if written {
			summary.Written++
			summary.Rows += rows
		} else {
			summary.Skipped++
		}
	}
	r.logger.Info("run finished",
		zap.String("run_id", r.cfg.RunID),
		zap.Int("categories", summary.Categories),
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped),
		zap.Int("rows", summary.Rows),
	)
	return summary, nil
}

func (r *Runner) processCategory(ctx context.Context, category string) (int, bool, error) {
	genreID, ok := r.resolver.Resolve(category)
	if !ok {
		r.logger.Warn("unknown category, skipping", zap.String("category", category))
		telemetry.ObserveCategory("skipped")
		return 0, false, nil
	}

	entries, err := r.source.TopApps(ctx, genreID, r.cfg.Limit)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		r.logger.Warn("chart fetch failed, skipping category",
			zap.String("category", category),
			zap.Int("genre_id", genreID),
			zap.Error(err),
		)
		telemetry.ObserveCategory("skipped")
		return 0, false, nil
	}
	if len(entries) == 0 {
		r.logger.Info("no apps found for category",
			zap.String("category", category),
			zap.Int("genre_id", genreID),
		)
	}

	rc := report.Context{Country: r.cfg.Country, Category: category, GenreID: genreID}
	rows, err := r.collectRows(ctx, rc, entries)
	if err != nil {
		return 0, false, err
	}

	data, err := report.Encode(rows)
	if err != nil {
		r.logger.Warn("encode table failed, skipping category",
			zap.String("category", category),
			zap.Error(err),
		)
		telemetry.ObserveCategory("skipped")
		return 0, false, nil
	}

	name := report.Filename(r.cfg.OutputTemplate, r.cfg.Country, category)
	uri, err := r.blobs.PutObject(ctx, name, r.cfg.ContentType, data)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		r.logger.Warn("write table failed, skipping category",
			zap.String("category", category),
			zap.String("path", name),
			zap.Error(err),
		)
		telemetry.ObserveCategory("skipped")
		return 0, false, nil
	}

	if r.sink != nil && len(rows) > 0 {
		if err := r.sink.StoreRows(ctx, r.cfg.RunID, rows); err != nil {
			r.logger.Warn("row sink failed",
				zap.String("category", category),
				zap.Error(err),
			)
		}
	}

	r.notifyDone(ctx, category, genreID, len(rows), uri, data)

	status := notify.StatusOK
	if len(rows) == 0 {
		status = notify.StatusEmpty
	}
	telemetry.ObserveCategory(status)
	telemetry.ObserveRowsWritten(r.cfg.Country, len(rows))
	r.logger.Info("category table written",
		zap.String("category", category),
		zap.Int("genre_id", genreID),
		zap.Int("rows", len(rows)),
		zap.String("uri", uri),
	)
	return len(rows), true, nil
}

// collectRows looks up and enriches every ranked entry, one row each.
// An unavailable lookup still yields a row with the chart name only.
func (r *Runner) collectRows(ctx context.Context, rc report.Context, entries []chart.RankedEntry) ([]report.Row, error) {
	rows := make([]report.Row, 0, len(entries))
	for _, entry := range entries {
		detail, found, err := r.looker.Lookup(ctx, entry.AppID)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", entry.AppID, err)
		}
		if !found {
			r.logger.Debug("detail unavailable",
				zap.String("app_id", entry.AppID),
				zap.String("category", rc.Category),
			)
		}
		enriched := r.enricher.Enrich(ctx, entry.AppID)
		rows = append(rows, report.BuildRow(rc, entry, detail, enriched))
	}
	return rows, nil
}

func (r *Runner) notifyDone(ctx context.Context, category string, genreID, rowCount int, uri string, data []byte) {
	status := notify.StatusOK
	if rowCount == 0 {
		status = notify.StatusEmpty
	}
	digest := sha256.Sum256(data)
	event := notify.Event{
		RunID:    r.cfg.RunID,
		Country:  r.cfg.Country,
		Category: category,
		GenreID:  genreID,
		Rows:     rowCount,
		URI:      uri,
		SHA256:   hex.EncodeToString(digest[:]),
		Status:   status,
	}
	if err := r.notifier.CategoryDone(ctx, event); err != nil {
		r.logger.Warn("notify failed",
			zap.String("category", category),
			zap.Error(err),
		)
	}
}
