package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart    EventType = "start"
	EventStop     EventType = "stop"
	EventRestart  EventType = "restart"
	EventShutdown EventType = "shutdown"
)

// Event represents a daemon lifecycle event exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	Port       int       `json:"port,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewEvent stamps an event with the current time. A non-nil err is kept
// as its message.
func NewEvent(t EventType, pid, port int, err error) Event {
	e := Event{Type: t, OccurredAt: time.Now().UTC(), PID: pid, Port: port}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// NullableError maps an empty error message to SQL NULL.
func (e Event) NullableError() any {
	if e.Error == "" {
		return nil
	}
	return e.Error
}
