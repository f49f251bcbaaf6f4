// Package notify publishes per-category completion events.
package notify

import "context"

// Event describes one finished category table.
type Event struct {
	RunID    string `json:"run_id"`
	Country  string `json:"country"`
	Category string `json:"category"`
	GenreID  int    `json:"genre_id"`
	Rows     int    `json:"rows"`
	URI      string `json:"uri"`
	SHA256   string `json:"sha256"`
	Status   string `json:"status"`
}

// Event statuses.
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
)

// Notifier pushes completion events to downstream consumers.
type Notifier interface {
	CategoryDone(ctx context.Context, event Event) error
}

// Noop discards events.
type Noop struct{}

// CategoryDone does nothing and always returns nil.
func (Noop) CategoryDone(_ context.Context, _ Event) error {
	return nil
}
