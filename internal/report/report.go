// Package report delivers error events to a remote collector. It is the
// sink behind the raven pipeline filter and the `report` log handler
// class. Delivery is best effort: events are queued in memory and dropped
// when the queue is full, because error reporting must never block or
// take down request handling.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a single error report.
type Event struct {
	ID        string            `json:"event_id"`
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Logger    string            `json:"logger,omitempty"`
	Message   string            `json:"message"`
	Stack     string            `json:"stacktrace,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Reporter accepts events for delivery.
type Reporter interface {
	// Capture queues an event. It must not block.
	Capture(ev Event)
	// Close flushes queued events, bounded by ctx.
	Close(ctx context.Context) error
}

func fill(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}

type nop struct{}

func (nop) Capture(Event)               {}
func (nop) Close(context.Context) error { return nil }

// Nop returns a reporter that discards everything.
func Nop() Reporter { return nop{} }
