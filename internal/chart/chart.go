// Package chart extracts the ranked app IDs for a storefront genre.
package chart

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/storecrawl/topcharts/internal/fetch"
	"github.com/storecrawl/topcharts/internal/telemetry"
)

// RankedEntry is one chart position. Rank is the 1-based position in
// the sequence the source returned.
type RankedEntry struct {
	Rank  int
	AppID string
	Name  string
}

// Source yields the ranked apps for a genre. An empty slice with a nil
// error means the chart exists but currently lists no apps.
type Source interface {
	TopApps(ctx context.Context, genreID, limit int) ([]RankedEntry, error)
}

// Config carries the storefront parameters shared by chart sources.
type Config struct {
	Country           string
	FeedBaseURL       string
	LegacyFeedBaseURL string
	FallbackTopFree   bool
}

// FeedSource reads the marketing tools genre feed. Chart fetches are
// one-shot: a failure here surfaces as an error and the caller skips
// the category.
type FeedSource struct {
	client *fetch.Client
	cfg    Config
	logger *zap.Logger
}

// NewFeedSource builds the default chart source.
func NewFeedSource(client *fetch.Client, cfg Config, logger *zap.Logger) *FeedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedSource{client: client, cfg: cfg, logger: logger}
}

type feedResponse struct {
	Feed struct {
		Results []feedResult `json:"results"`
	} `json:"feed"`
}

type feedResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TopApps implements Source.
func (s *FeedSource) TopApps(ctx context.Context, genreID, limit int) ([]RankedEntry, error) {
	url := fmt.Sprintf("%s/%s/apps/top-free/%d/genre/%d.json",
		s.cfg.FeedBaseURL, s.cfg.Country, limit, genreID)

	var resp feedResponse
	if err := s.client.GetJSON(ctx, url, &resp); err != nil {
		telemetry.ObserveChartFetch("feed", "error")
		return nil, fmt.Errorf("fetch genre feed: %w", err)
	}
	telemetry.ObserveChartFetch("feed", "ok")

	entries := make([]RankedEntry, 0, len(resp.Feed.Results))
	for _, r := range resp.Feed.Results {
		if r.ID == "" {
			continue
		}
		entries = append(entries, RankedEntry{AppID: r.ID, Name: r.Name})
	}
	entries = capAndRank(entries, limit)

	if len(entries) == 0 && s.cfg.FallbackTopFree {
		return s.legacyTopFree(ctx, limit)
	}
	return entries, nil
}

type legacyResponse struct {
	Feed struct {
		Entry []legacyEntry `json:"entry"`
	} `json:"feed"`
}

type legacyEntry struct {
	ID struct {
		Attributes struct {
			IMID string `json:"im:id"`
		} `json:"attributes"`
	} `json:"id"`
	Name struct {
		Label string `json:"label"`
	} `json:"im:name"`
}

// legacyTopFree fetches the storefront-wide top free chart from the
// legacy RSS endpoint. It is best effort: the genre feed already
// answered with zero entries, so a fallback failure keeps that result.
func (s *FeedSource) legacyTopFree(ctx context.Context, limit int) ([]RankedEntry, error) {
	url := fmt.Sprintf("%s/%s/rss/topfreeapplications/limit=%d/json",
		s.cfg.LegacyFeedBaseURL, s.cfg.Country, limit)

	var resp legacyResponse
	if err := s.client.GetJSON(ctx, url, &resp); err != nil {
		telemetry.ObserveChartFetch("legacy", "error")
		s.logger.Warn("legacy top-free fallback failed", zap.Error(err))
		return []RankedEntry{}, nil
	}
	telemetry.ObserveChartFetch("legacy", "ok")

	entries := make([]RankedEntry, 0, len(resp.Feed.Entry))
	for _, e := range resp.Feed.Entry {
		if e.ID.Attributes.IMID == "" {
			continue
		}
		entries = append(entries, RankedEntry{
			AppID: e.ID.Attributes.IMID,
			Name:  e.Name.Label,
		})
	}
	return capAndRank(entries, limit), nil
}

// capAndRank truncates to limit and assigns 1-based ranks in order.
func capAndRank(entries []RankedEntry, limit int) []RankedEntry {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
