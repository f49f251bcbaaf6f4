// Package lookup fetches per-app metadata from the storefront lookup
// API with bounded retry and polite pacing.
package lookup

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/storecrawl/topcharts/internal/fetch"
	"github.com/storecrawl/topcharts/internal/telemetry"
)

// Detail holds the metadata columns extracted from one lookup result.
// Numeric fields are pointers so a missing field stays distinguishable
// from a real zero.
type Detail struct {
	AppName           string
	Developer         string
	URL               string
	Price             *float64
	AverageUserRating *float64
	UserRatingCount   *int64
	PrimaryGenre      string
	Description       string
	LaunchDate        string
	UpdateDate        string
}

// Config carries lookup client parameters.
type Config struct {
	BaseURL string
	Country string
	Delay   time.Duration
}

// Client performs one-ID lookups. Lookups for distinct IDs are spaced
// at least Delay apart; retries of a single ID follow the fetch
// client's backoff instead.
type Client struct {
	client  *fetch.Client
	baseURL string
	country string
	pacer   *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds a lookup client on top of the shared fetch client.
func NewClient(fc *fetch.Client, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	var pacer *rate.Limiter
	if cfg.Delay > 0 {
		pacer = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}
	return &Client{
		client:  fc,
		baseURL: cfg.BaseURL,
		country: cfg.Country,
		pacer:   pacer,
		logger:  logger,
	}
}

type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

type lookupResult struct {
	TrackName                 string   `json:"trackName"`
	SellerName                string   `json:"sellerName"`
	TrackViewURL              string   `json:"trackViewUrl"`
	Price                     *float64 `json:"price"`
	AverageUserRating         *float64 `json:"averageUserRating"`
	UserRatingCount           *int64   `json:"userRatingCount"`
	PrimaryGenreName          string   `json:"primaryGenreName"`
	Description               string   `json:"description"`
	ReleaseDate               string   `json:"releaseDate"`
	CurrentVersionReleaseDate string   `json:"currentVersionReleaseDate"`
}

// Lookup fetches metadata for one app ID.
//
// ok is false when the app is unavailable: retries exhausted, a
// permanent upstream status, an undecodable body, or an empty result
// set. Unavailability is not an error; the caller emits a partial row
// and continues. The returned error is reserved for context
// cancellation.
func (c *Client) Lookup(ctx context.Context, appID string) (Detail, bool, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return Detail{}, false, fmt.Errorf("pace lookup: %w", err)
		}
	}

	start := time.Now()
	endpoint := fmt.Sprintf("%s/lookup?id=%s&country=%s",
		c.baseURL, url.QueryEscape(appID), url.QueryEscape(c.country))

	var resp lookupResponse
	if err := c.client.GetJSONRetry(ctx, endpoint, &resp); err != nil {
		if ctx.Err() != nil {
			return Detail{}, false, ctx.Err()
		}
		telemetry.ObserveLookup("unavailable", time.Since(start))
		c.logger.Warn("lookup unavailable",
			zap.String("app_id", appID),
			zap.Error(err),
		)
		return Detail{}, false, nil
	}

	if resp.ResultCount < 1 || len(resp.Results) == 0 {
		telemetry.ObserveLookup("unavailable", time.Since(start))
		c.logger.Warn("lookup returned no results", zap.String("app_id", appID))
		return Detail{}, false, nil
	}

	telemetry.ObserveLookup("ok", time.Since(start))
	return detailFrom(resp.Results[0]), true, nil
}

func detailFrom(r lookupResult) Detail {
	return Detail{
		AppName:           r.TrackName,
		Developer:         r.SellerName,
		URL:               r.TrackViewURL,
		Price:             r.Price,
		AverageUserRating: r.AverageUserRating,
		UserRatingCount:   r.UserRatingCount,
		PrimaryGenre:      r.PrimaryGenreName,
		Description:       r.Description,
		LaunchDate:        r.ReleaseDate,
		UpdateDate:        r.CurrentVersionReleaseDate,
	}
}
