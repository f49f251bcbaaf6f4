package chart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const genrePage = `<!DOCTYPE html>
<html><body>
<div id="selectedcontent">
  <ul>
    <li><a href="https://apps.apple.com/us/app/alpha-reader/id100001">Alpha Reader</a></li>
    <li><a href="https://apps.apple.com/us/app/beta-notes/id100002">Beta Notes</a></li>
    <li><a href="https://apps.apple.com/us/app/alpha-reader/id100001">Alpha Reader (dup)</a></li>
    <li><a href="/us/app/gamma-scan/id100003?mt=8">Gamma Scan</a></li>
  </ul>
</div>
<a href="/us/genre/ios-books/id6018">All Books</a>
<a href="https://example.com/about">About</a>
</body></html>`

func newPageSource(baseURL string) *PageSource {
	return NewPageSource(PageConfig{
		Country:     "us",
		PageBaseURL: baseURL,
		UserAgent:   "topcharts-test",
		Timeout:     5 * time.Second,
	}, nil)
}

func TestPageSourceTopApps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/us/genre/id6018", r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(genrePage))
	}))
	defer srv.Close()

	entries, err := newPageSource(srv.URL).TopApps(context.Background(), 6018, 50)
	require.NoError(t, err)
	require.Equal(t, []RankedEntry{
		{Rank: 1, AppID: "100001", Name: "Alpha Reader"},
		{Rank: 2, AppID: "100002", Name: "Beta Notes"},
		{Rank: 3, AppID: "100003", Name: "Gamma Scan"},
	}, entries)
}

func TestPageSourceLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(genrePage))
	}))
	defer srv.Close()

	entries, err := newPageSource(srv.URL).TopApps(context.Background(), 6018, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "100002", entries[1].AppID)
}

func TestPageSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newPageSource(srv.URL).TopApps(context.Background(), 6018, 50)
	require.Error(t, err)
}

func TestPageSourceNoAnchors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
	}))
	defer srv.Close()

	entries, err := newPageSource(srv.URL).TopApps(context.Background(), 6018, 50)
	require.NoError(t, err)
	require.Empty(t, entries)
}
