package pipeline

import (
	"context"

	"github.com/storecrawl/topcharts/internal/lookup"
	"github.com/storecrawl/topcharts/internal/report"
)

// BlobStore writes an encoded table and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// RowSink persists chart rows keyed by run.
type RowSink interface {
	StoreRows(ctx context.Context, runID string, rows []report.Row) error
}

// Looker fetches structured metadata for one app.
type Looker interface {
	Lookup(ctx context.Context, appID string) (lookup.Detail, bool, error)
}
