// Package cmd defines and implements the CLI commands for the topcharts executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storecrawl/topcharts/internal/catalog"
	"github.com/storecrawl/topcharts/internal/chart"
	"github.com/storecrawl/topcharts/internal/config"
	"github.com/storecrawl/topcharts/internal/enrich"
	"github.com/storecrawl/topcharts/internal/fetch"
	"github.com/storecrawl/topcharts/internal/genre"
	"github.com/storecrawl/topcharts/internal/logging"
	"github.com/storecrawl/topcharts/internal/lookup"
	"github.com/storecrawl/topcharts/internal/notify"
	"github.com/storecrawl/topcharts/internal/pipeline"
	"github.com/storecrawl/topcharts/internal/storage/gcs"
	"github.com/storecrawl/topcharts/internal/storage/local"
	"github.com/storecrawl/topcharts/internal/storage/postgres"
	"github.com/storecrawl/topcharts/internal/telemetry"
)

// newCollectCmd creates and configures the 'collect' subcommand, which
// runs one full collection pass over the configured category list.
func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collects one top-chart table per configured category",
		Long: `Reads the category list, resolves each category to a storefront genre,
fetches the ranked chart, looks up per-app metadata with retry and
backoff, and writes one CSV table per category. Skipped categories are
logged and never abort the run.`,

		RunE: runCollectCommand,
	}
	return cmd
}

func runCollectCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	telemetry.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	categories, err := catalog.Load(cfg.Run.InputCSV)
	if err != nil {
		return fmt.Errorf("read category list: %w", err)
	}

	blobs, closeBlobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlobs()

	var ops *telemetry.Server
	if cfg.Metrics.Addr != "" {
		ops = telemetry.NewServer(cfg.Metrics.Addr, logger.Named("ops"))
		go func() {
			if err := ops.Start(); err != nil {
				logger.Warn("ops listener failed", zap.Error(err))
			}
		}()
	}

	fc := fetch.NewClient(fetch.Config{
		Timeout:   cfg.HTTP.Timeout(),
		UserAgent: cfg.HTTP.UserAgent,
		Policy: fetch.Policy{
			MaxRetries:    cfg.Retry.MaxRetries,
			BackoffBase:   cfg.Retry.BackoffBase,
			BackoffFactor: cfg.Retry.BackoffFactor,
		},
	}, logger.Named("fetch"))

	looker := lookup.NewClient(fc, lookup.Config{
		BaseURL: cfg.Lookup.BaseURL,
		Country: cfg.Run.Country,
		Delay:   cfg.Lookup.Delay,
	}, logger.Named("lookup"))

	enricher, closeEnricher := buildEnricher(cfg, fc, logger)
	defer closeEnricher()

	rowStore, err := buildRowStore(ctx, cfg)
	if err != nil {
		return err
	}
	var sink pipeline.RowSink
	if rowStore != nil {
		defer rowStore.Close()
		sink = rowStore
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	runID := uuid.NewString()
	runner := pipeline.New(
		genre.NewResolver(cfg.Genres.Overrides),
		buildChartSource(cfg, fc, logger),
		looker,
		enricher,
		blobs,
		sink,
		notifier,
		pipeline.Config{
			RunID:          runID,
			Country:        cfg.Run.Country,
			Limit:          cfg.Run.Limit,
			OutputTemplate: cfg.Output.FilenameTemplate,
		},
		logger.Named("pipeline"),
	)

	logger.Info("collection run starting",
		zap.String("run_id", runID),
		zap.String("country", cfg.Run.Country),
		zap.Int("categories", len(categories)),
	)

	_, err = runner.Run(ctx, categories)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Info("collection interrupted")
	default:
		return fmt.Errorf("run collection: %w", err)
	}

	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops listener shutdown failed", zap.Error(err))
		}
	}
	return nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (pipeline.BlobStore, func(), error) {
	if cfg.Output.Provider == config.OutputProviderGCS {
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{
			Bucket: cfg.Output.GCSBucket,
			Prefix: cfg.Output.Dir,
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("init gcs store: %w", err)
		}
		return store, func() { _ = client.Close() }, nil
	}

	store, err := local.New(local.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return nil, nil, fmt.Errorf("init local store: %w", err)
	}
	return store, func() {}, nil
}

func buildChartSource(cfg config.Config, fc *fetch.Client, logger *zap.Logger) chart.Source {
	if cfg.Chart.Source == config.ChartSourcePage {
		return chart.NewPageSource(chart.PageConfig{
			Country:     cfg.Run.Country,
			PageBaseURL: cfg.Chart.PageBaseURL,
			UserAgent:   cfg.HTTP.UserAgent,
			Timeout:     cfg.HTTP.Timeout(),
		}, logger.Named("chart"))
	}
	return chart.NewFeedSource(fc, chart.Config{
		Country:           cfg.Run.Country,
		FeedBaseURL:       cfg.Chart.FeedBaseURL,
		LegacyFeedBaseURL: cfg.Chart.LegacyFeedBaseURL,
		FallbackTopFree:   cfg.Chart.FallbackTopFree,
	}, logger.Named("chart"))
}

// buildEnricher picks the enricher once at startup. A missing Chrome
// binary degrades headless enrichment to plain HTTP instead of failing.
func buildEnricher(cfg config.Config, fc *fetch.Client, logger *zap.Logger) (enrich.Enricher, func()) {
	if !cfg.Enrichment.Enabled {
		return enrich.Noop{}, func() {}
	}

	var renderer *enrich.Renderer
	if cfg.Enrichment.Headless {
		r, err := enrich.NewRenderer(cfg.HTTP.UserAgent, time.Duration(cfg.Enrichment.NavTimeoutSec)*time.Second)
		switch {
		case err == nil:
			renderer = r
		case errors.Is(err, enrich.ErrNoChrome):
			logger.Warn("no chrome binary found, enrichment falls back to plain http")
		default:
			logger.Warn("headless renderer init failed", zap.Error(err))
		}
	}

	enricher := enrich.NewPageEnricher(fc, enrich.PageConfig{
		Country:     cfg.Run.Country,
		PageBaseURL: cfg.Chart.PageBaseURL,
	}, renderer, logger.Named("enrich"))

	return enricher, func() {
		if renderer != nil {
			renderer.Close()
		}
	}
}

func buildRowStore(ctx context.Context, cfg config.Config) (*postgres.RowStore, error) {
	if cfg.DB.DSN == "" {
		return nil, nil
	}
	store, err := postgres.NewRowStore(ctx, postgres.RowStoreConfig{
		DSN:   cfg.DB.DSN,
		Table: cfg.DB.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("init row sink: %w", err)
	}
	return store, nil
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Notifier, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.Topic == "" {
		return notify.Noop{}, func() {}, nil
	}
	ps, err := notify.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub notifier: %w", err)
	}
	return ps, func() {
		if err := ps.Close(); err != nil {
			logger.Warn("close pubsub notifier failed", zap.Error(err))
		}
	}, nil
}
