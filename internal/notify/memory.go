package notify

import (
	"context"
	"sync"
)

// Memory records events for inspection in tests.
type Memory struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemory returns a recording Notifier.
func NewMemory() *Memory {
	return &Memory{}
}

// CategoryDone records the event.
func (m *Memory) CategoryDone(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns the recorded events.
func (m *Memory) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
