package chart

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/storecrawl/topcharts/internal/telemetry"
)

// App anchors look like /{cc}/app/{slug}/id{digits}; genre and chart
// anchors also carry /id{digits} so the /app/ segment is required.
var appAnchorID = regexp.MustCompile(`/app/(?:[^/]+/)?id(\d+)`)

// PageConfig carries the parameters for the scraping chart source.
type PageConfig struct {
	Country     string
	PageBaseURL string
	UserAgent   string
	Timeout     time.Duration
}

// PageSource extracts ranked apps from the storefront genre page by
// scraping app anchors. Document order is the rank order.
type PageSource struct {
	cfg    PageConfig
	logger *zap.Logger
}

// NewPageSource builds the scraping chart source.
func NewPageSource(cfg PageConfig, logger *zap.Logger) *PageSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageSource{cfg: cfg, logger: logger}
}

// TopApps implements Source.
func (s *PageSource) TopApps(ctx context.Context, genreID, limit int) ([]RankedEntry, error) {
	url := fmt.Sprintf("%s/%s/genre/id%d", s.cfg.PageBaseURL, s.cfg.Country, genreID)

	collector := colly.NewCollector(colly.UserAgent(s.cfg.UserAgent))
	if s.cfg.Timeout > 0 {
		collector.SetRequestTimeout(s.cfg.Timeout)
	}

	seen := make(map[string]struct{})
	var entries []RankedEntry
	var fetchErr error

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if limit > 0 && len(entries) >= limit {
			return
		}
		match := appAnchorID.FindStringSubmatch(e.Attr("href"))
		if match == nil {
			return
		}
		id := match[1]
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		entries = append(entries, RankedEntry{
			AppID: id,
			Name:  strings.TrimSpace(e.Text),
		})
	})

	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(url); err != nil {
		telemetry.ObserveChartFetch("page", "error")
		return nil, fmt.Errorf("visit genre page: %w", err)
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		telemetry.ObserveChartFetch("page", "error")
		return nil, fmt.Errorf("fetch genre page: %w", fetchErr)
	}
	telemetry.ObserveChartFetch("page", "ok")

	return capAndRank(entries, limit), nil
}
