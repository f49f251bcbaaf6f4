package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storecrawl/topcharts/internal/fetch"
	"github.com/storecrawl/topcharts/internal/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	m.Run()
}

type noopPauser struct{}

func (noopPauser) Pause(context.Context, time.Duration) {}

func newTestClient(t *testing.T, baseURL string, maxRetries int, delay time.Duration) *Client {
	t.Helper()
	fc := fetch.NewClient(fetch.Config{
		Timeout:   5 * time.Second,
		UserAgent: "topcharts-test",
		Policy: fetch.Policy{
			MaxRetries:    maxRetries,
			BackoffBase:   time.Second,
			BackoffFactor: 1.8,
		},
		Pauser: noopPauser{},
	}, nil)
	return NewClient(fc, Config{
		BaseURL: baseURL,
		Country: "us",
		Delay:   delay,
	}, nil)
}

const lookupBody = `{
  "resultCount": 1,
  "results": [{
    "trackName": "Alpha Reader",
    "sellerName": "Alpha Labs Inc.",
    "trackViewUrl": "https://apps.example.com/us/app/alpha-reader/id100001",
    "price": 0,
    "averageUserRating": 4.6521,
    "userRatingCount": 12345,
    "primaryGenreName": "Books",
    "description": "Read everything.",
    "releaseDate": "2015-03-02T08:00:00Z",
    "currentVersionReleaseDate": "2024-11-21T17:30:00Z"
  }]
}`

func TestLookupSuccess(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotQuery = r.URL.RawQuery
		mu.Unlock()
		_, _ = w.Write([]byte(lookupBody))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0, 0)
	detail, ok, err := client.Lookup(context.Background(), "100001")
	require.NoError(t, err)
	require.True(t, ok)

	mu.Lock()
	require.Equal(t, "id=100001&country=us", gotQuery)
	mu.Unlock()

	require.Equal(t, "Alpha Reader", detail.AppName)
	require.Equal(t, "Alpha Labs Inc.", detail.Developer)
	require.Equal(t, "https://apps.example.com/us/app/alpha-reader/id100001", detail.URL)
	require.NotNil(t, detail.Price)
	require.Zero(t, *detail.Price)
	require.NotNil(t, detail.AverageUserRating)
	require.InEpsilon(t, 4.6521, *detail.AverageUserRating, 1e-9)
	require.NotNil(t, detail.UserRatingCount)
	require.EqualValues(t, 12345, *detail.UserRatingCount)
	require.Equal(t, "Books", detail.PrimaryGenre)
	require.Equal(t, "Read everything.", detail.Description)
	require.Equal(t, "2015-03-02T08:00:00Z", detail.LaunchDate)
	require.Equal(t, "2024-11-21T17:30:00Z", detail.UpdateDate)
}

func TestLookupMissingFieldsZeroValued(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"trackName":"Bare"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0, 0)
	detail, ok, err := client.Lookup(context.Background(), "7")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Bare", detail.AppName)
	require.Empty(t, detail.Developer)
	require.Nil(t, detail.Price)
	require.Nil(t, detail.AverageUserRating)
	require.Nil(t, detail.UserRatingCount)
}

func TestLookupEmptyResultsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"resultCount":0,"results":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3, 0)
	_, ok, err := client.Lookup(context.Background(), "404404")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLookupExhaustsRetriesThenUnavailable(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 4, 0)
	_, ok, err := client.Lookup(context.Background(), "1")
	require.NoError(t, err, "unavailability must not abort the run")
	require.False(t, ok)

	mu.Lock()
	require.Equal(t, 5, attempts, "default policy means five total attempts")
	mu.Unlock()
}

func TestLookupPermanentStatusSingleAttempt(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 4, 0)
	_, ok, err := client.Lookup(context.Background(), "1")
	require.NoError(t, err)
	require.False(t, ok)

	mu.Lock()
	require.Equal(t, 1, attempts)
	mu.Unlock()
}

func TestLookupUndecodableBodyUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 2, 0)
	_, ok, err := client.Lookup(context.Background(), "1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLookupPacesDistinctLookups(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(lookupBody))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0, 100*time.Millisecond)

	start := time.Now()
	_, ok, err := client.Lookup(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = client.Lookup(context.Background(), "2")
	require.NoError(t, err)
	require.True(t, ok)

	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond,
		"second lookup should wait for the pacer")
}

func TestLookupContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL, 4, 0)
	_, _, err := client.Lookup(ctx, "1")
	require.Error(t, err)
}
