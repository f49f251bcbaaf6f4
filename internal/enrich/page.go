package enrich

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/storecrawl/topcharts/internal/fetch"
)

// minStaticBytes is the size under which a response is assumed to be a
// script-gated app shell.
const minStaticBytes = 2048

var spaMarkers = [][]byte{
	[]byte("please enable javascript"),
	[]byte("requires javascript"),
	[]byte("noscript-notice"),
}

// PageConfig carries product page parameters.
type PageConfig struct {
	Country     string
	PageBaseURL string
}

// PageEnricher fetches the storefront product page and extracts meta
// fields. When a renderer is attached, pages that look script-gated
// are re-fetched through headless Chrome before extraction.
type PageEnricher struct {
	client   *fetch.Client
	cfg      PageConfig
	renderer *Renderer
	logger   *zap.Logger
}

// NewPageEnricher builds the page enricher. renderer may be nil.
func NewPageEnricher(fc *fetch.Client, cfg PageConfig, renderer *Renderer, logger *zap.Logger) *PageEnricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageEnricher{client: fc, cfg: cfg, renderer: renderer, logger: logger}
}

// Enrich implements Enricher.
func (e *PageEnricher) Enrich(ctx context.Context, appID string) Result {
	pageURL := fmt.Sprintf("%s/%s/app/id%s", e.cfg.PageBaseURL, e.cfg.Country, appID)

	body, status, err := e.client.Get(ctx, pageURL)
	if err != nil {
		e.logger.Debug("enrichment fetch failed", zap.String("app_id", appID), zap.Error(err))
		return Result{}
	}
	if status < 200 || status > 299 {
		e.logger.Debug("enrichment fetch rejected",
			zap.String("app_id", appID), zap.Int("status", status))
		return Result{}
	}

	if e.renderer != nil && scriptGated(body) {
		rendered, rerr := e.renderer.Render(ctx, pageURL)
		if rerr != nil {
			e.logger.Debug("headless render failed; using static page",
				zap.String("app_id", appID), zap.Error(rerr))
		} else {
			body = rendered
		}
	}

	result, perr := extract(body)
	if perr != nil {
		e.logger.Debug("enrichment parse failed", zap.String("app_id", appID), zap.Error(perr))
		return Result{}
	}
	return result
}

// scriptGated reports whether the static HTML looks like an app shell
// that only renders through JavaScript.
func scriptGated(body []byte) bool {
	if len(body) < minStaticBytes {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range spaMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// extract pulls the meta fields out of a product page. The body is
// normalized to UTF-8 first; the charset is sniffed from the content.
func extract(body []byte) (Result, error) {
	enc, _, _ := charset.DetermineEncoding(body, "")
	utf8body, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		if !utf8.Valid(body) {
			return Result{}, fmt.Errorf("decode page: %w", err)
		}
		utf8body = body
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8body))
	if err != nil {
		return Result{}, fmt.Errorf("parse page: %w", err)
	}

	title := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	desc := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if desc == "" {
		desc = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}

	canonical := strings.TrimSpace(doc.Find(`link[rel="canonical"]`).AttrOr("href", ""))
	if canonical == "" {
		canonical = strings.TrimSpace(doc.Find(`meta[property="og:url"]`).AttrOr("content", ""))
	}

	developer := strings.TrimSpace(doc.Find(`a[href*="/developer/"]`).First().Text())

	return Result{
		Title:        title,
		Description:  desc,
		Developer:    developer,
		CanonicalURL: canonical,
	}, nil
}
