package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storecrawl/topcharts/internal/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	m.Run()
}

// recordingPauser captures requested delays instead of sleeping.
type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, delay)
}

func (p *recordingPauser) recorded() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.delays...)
}

func newTestClient(policy Policy, pauser Pauser) *Client {
	return NewClient(Config{
		Timeout:   5 * time.Second,
		UserAgent: "topcharts-test",
		Policy:    policy,
		Pauser:    pauser,
	}, nil)
}

func TestGetJSONRetryExhaustsTransient(t *testing.T) {
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

	pauser := &recordingPauser{}
	client := newTestClient(Policy{
		MaxRetries:    3,
		BackoffBase:   time.Second,
		BackoffFactor: 2.0,
	}, pauser)

	var out map[string]any
	err := client.GetJSONRetry(context.Background(), srv.URL, &out)
	require.Error(t, err)

	// Initial attempt + 3 retries = 4 attempts.
	mu.Lock()
	require.Equal(t, 4, attempts)
	mu.Unlock()

	require.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
	}, pauser.recorded())
}

func TestGetJSONRetryStopsOnPermanentStatus(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pauser := &recordingPauser{}
	client := newTestClient(Policy{MaxRetries: 3, BackoffBase: time.Second, BackoffFactor: 1.8}, pauser)

	var out map[string]any
	err := client.GetJSONRetry(context.Background(), srv.URL, &out)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)

	mu.Lock()
	require.Equal(t, 1, attempts, "permanent statuses must not be retried")
	mu.Unlock()
	require.Empty(t, pauser.recorded())
}

func TestGetJSONRetrySucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resultCount":1}`))
	}))
	defer srv.Close()

	pauser := &recordingPauser{}
	client := newTestClient(Policy{MaxRetries: 4, BackoffBase: 100 * time.Millisecond, BackoffFactor: 1.8}, pauser)

	var out struct {
		ResultCount int `json:"resultCount"`
	}
	err := client.GetJSONRetry(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	require.Equal(t, 1, out.ResultCount)

	mu.Lock()
	require.Equal(t, 3, attempts)
	mu.Unlock()
	require.Len(t, pauser.recorded(), 2)
}

func TestGetJSONRetryRetriesTransportErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	// Close immediately so every dial fails.
	srv.Close()

	pauser := &recordingPauser{}
	client := newTestClient(Policy{MaxRetries: 2, BackoffBase: time.Millisecond, BackoffFactor: 1.0}, pauser)

	var out map[string]any
	err := client.GetJSONRetry(context.Background(), srv.URL, &out)
	require.Error(t, err)
	require.Len(t, pauser.recorded(), 2, "transport errors should be retried")
}

func TestGetJSONRetryHonorsContextCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pauser := &cancelingPauser{cancel: cancel}
	client := newTestClient(Policy{MaxRetries: 5, BackoffBase: time.Second, BackoffFactor: 1.8}, pauser)

	var out map[string]any
	err := client.GetJSONRetry(ctx, srv.URL, &out)
	require.ErrorIs(t, err, context.Canceled)
}

// cancelingPauser cancels the run on the first pause.
type cancelingPauser struct {
	cancel context.CancelFunc
}

func (p *cancelingPauser) Pause(context.Context, time.Duration) {
	p.cancel()
}

func TestGetJSONDoesNotRetry(t *testing.T) {
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

	client := newTestClient(Policy{MaxRetries: 3, BackoffBase: time.Second, BackoffFactor: 1.8}, &recordingPauser{})

	var out map[string]any
	err := client.GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)

	mu.Lock()
	require.Equal(t, 1, attempts, "single-shot fetch must not retry")
	mu.Unlock()
}

func TestGetSetsUserAgent(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotUA = r.Header.Get("User-Agent")
		mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := newTestClient(Policy{}, &recordingPauser{})
	body, status, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", string(body))
	mu.Lock()
	require.Equal(t, "topcharts-test", gotUA)
	mu.Unlock()
}

func TestPolicyDelay(t *testing.T) {
	t.Parallel()

	p := Policy{BackoffBase: time.Second, BackoffFactor: 1.8}
	require.Equal(t, 1000*time.Millisecond, p.Delay(0))
	require.Equal(t, 1800*time.Millisecond, p.Delay(1))
	require.Equal(t, 3240*time.Millisecond, p.Delay(2))
}

func TestTransient(t *testing.T) {
	t.Parallel()

	for _, code := range []int{429, 502, 503, 504} {
		require.True(t, Transient(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 500} {
		require.False(t, Transient(code), "status %d", code)
	}
}
