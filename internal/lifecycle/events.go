package lifecycle

import (
	"context"
	"time"

	"github.com/brugmanjoost/drumbeat/internal/message"
)

// EventType names a committed lifecycle change.
type EventType string

const (
	EventCreated   EventType = "message.created"
	EventCancelled EventType = "message.cancelled"
	EventCompleted EventType = "message.completed"
	EventFailed    EventType = "message.failed"
	EventDeleted   EventType = "message.deleted"
)

// Event describes a state change after it has been committed.
type Event struct {
	Type    EventType      `json:"type"`
	Queue   string         `json:"queue"`
	ID      int64          `json:"id"`
	Subject string         `json:"subject,omitempty"`
	Status  message.Status `json:"status"`
	At      time.Time      `json:"at"`
}

// Notifier receives events. Errors are logged by the engine and never undo
// or fail the operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

func eventForStatus(st message.Status) EventType {
	switch st {
	case message.StatusCancelled:
		return EventCancelled
	case message.StatusCompleted:
		return EventCompleted
	case message.StatusFailed:
		return EventFailed
	default:
		return EventCreated
	}
}
