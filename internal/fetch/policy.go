package fetch

import (
	"context"
	"math"
	"net/http"
	"time"
)

// Policy controls retry behavior for transient failures.
type Policy struct {
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffFactor float64
}

// Delay returns the wait before retry number n, counted from zero.
func (p Policy) Delay(n int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(p.BackoffBase) * math.Pow(factor, float64(n)))
}

// Transient reports whether the status code signals a retryable condition.
func Transient(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Pauser abstracts how the client waits before a retry attempt.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser waits on a timer, honoring context cancellation.
type TimerPauser struct{}

// Pause implements Pauser.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
