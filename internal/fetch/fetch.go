// Package fetch provides the shared HTTP client for chart and lookup
// requests, including the jitter-free exponential retry used for
// transient upstream failures.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/storecrawl/topcharts/internal/telemetry"
)

// maxBodyBytes caps response reads; chart and lookup payloads stay well
// under this.
const maxBodyBytes = 8 << 20

// StatusError reports a non-2xx response that is not worth retrying.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Config holds client construction parameters.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Policy    Policy
	Pauser    Pauser
}

// Client is a thin wrapper over http.Client with a fixed User-Agent and
// a retry loop for JSON endpoints.
type Client struct {
	httpClient *http.Client
	userAgent  string
	policy     Policy
	pauser     Pauser
	logger     *zap.Logger
}

// NewClient builds a Client. A nil Pauser falls back to a timer pause.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	pauser := cfg.Pauser
	if pauser == nil {
		pauser = TimerPauser{}
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		policy:    cfg.Policy,
		pauser:    pauser,
		logger:    logger,
	}
}

// Get performs a single GET. The error is non-nil only for transport
// failures; callers inspect the status code themselves.
func (c *Client) Get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body failed", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body from %s: %w", url, err)
	}
	return body, resp.StatusCode, nil
}

// GetJSON performs a single attempt and decodes a 2xx body into v.
// Chart feeds use this; a failure here skips the category.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, status, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return &StatusError{Code: status, URL: url}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetJSONRetry fetches url with the configured retry policy and decodes
// the body into v.
//
// Transient failures (429, 502, 503, 504, transport errors) are retried
// up to MaxRetries times, so the request is attempted at most
// MaxRetries+1 times. Any other status fails immediately without
// retrying. The delay before retry n is BackoffBase * BackoffFactor^n.
func (c *Client) GetJSONRetry(ctx context.Context, url string, v any) error {
	attempts := c.policy.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.policy.Delay(attempt - 1)
			c.logger.Warn("retrying after transient failure",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			telemetry.ObserveLookupRetry()
			c.pauser.Pause(ctx, delay)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		body, status, err := c.Get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		if Transient(status) {
			lastErr = &StatusError{Code: status, URL: url}
			continue
		}
		if status < 200 || status > 299 {
			return &StatusError{Code: status, URL: url}
		}
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("decode %s: %w", url, err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d attempts: %w", attempts, lastErr)
}
