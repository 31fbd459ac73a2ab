package report

import (
	"context"
	"sync"
)

// Memory is an in-process reporter that retains captured events. It backs
// tests across packages and can serve as a crash-ring buffer.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Capture(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, fill(ev))
}

func (m *Memory) Close(context.Context) error { return nil }

// Events returns a copy of everything captured so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Reset discards captured events.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
