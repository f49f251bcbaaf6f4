// Package enrich supplies best-effort product page metadata used to
// fill gaps the lookup API leaves. Enrichment never fails a run: every
// error collapses to an empty result.
package enrich

import "context"

// Result carries fields extracted from a product page. Zero values
// mean the field could not be extracted.
type Result struct {
	Title        string
	Description  string
	Developer    string
	CanonicalURL string
}

// Empty reports whether nothing was extracted.
func (r Result) Empty() bool {
	return r == Result{}
}

// Enricher produces supplemental metadata for one app ID.
type Enricher interface {
	Enrich(ctx context.Context, appID string) Result
}

// Noop is the enricher used when enrichment is disabled.
type Noop struct{}

// Enrich implements Enricher.
func (Noop) Enrich(context.Context, string) Result {
	return Result{}
}
