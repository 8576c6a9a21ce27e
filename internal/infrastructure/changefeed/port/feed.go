package port

import (
	"context"
	"fmt"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is a row-level change notification. New is nil for deletes and Old is
// nil for inserts; both are JSON-decoded row images keyed by column name.
type Event struct {
	Table string         `json:"table"`
	Type  EventType      `json:"type"`
	New   map[string]any `json:"new,omitempty"`
	Old   map[string]any `json:"old,omitempty"`
}

// Row returns the most recent row image available.
func (e Event) Row() map[string]any {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// Filter selects events of one table whose Column equals Value.
// An empty Column matches every row of the table.
type Filter struct {
	Table  string
	Column string
	Value  string
}

func (f Filter) Matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := e.Row()[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

// Handler receives matching events. It is called from the feed's delivery
// goroutine and must not block.
type Handler func(Event)

// Subscription stops delivery when closed. Close is idempotent.
type Subscription interface {
	Close() error
}

// Feed delivers store change events to subscribers.
// Implementations should be concurrency-safe.
type Feed interface {
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Close() error
}

// Publisher emits change events for feeds that are not fed by the store itself.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
