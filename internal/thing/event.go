package thing

import (
	"sync"
	"time"
)

// timestampLayout renders an explicit numeric UTC offset rather than
// the RFC 3339 "Z" shorthand, matching what protocol clients expect
// in event and action timestamps.
const timestampLayout = "2006-01-02T15:04:05-07:00"

var (
	clockMu   sync.Mutex
	lastClock time.Time
)

// timestamp returns the current UTC time rendered with an explicit
// zero offset. Readings are guaranteed non-decreasing across the
// process even if the wall clock steps backwards.
func timestamp() string {
	clockMu.Lock()
	defer clockMu.Unlock()

	now := time.Now().UTC()
	if now.Before(lastClock) {
		now = lastClock
	}
	lastClock = now
	return now.Format(timestampLayout)
}

// Event is an immutable timestamped record of something that happened
// on a thing, with optional structured data. The timestamp is assigned
// at construction and never changes.
type Event struct {
	name      string
	data      any
	timestamp string
}

// NewEvent creates an event. Data may be nil for events that carry no
// payload beyond their occurrence.
func NewEvent(name string, data any) *Event {
	return &Event{
		name:      name,
		data:      data,
		timestamp: timestamp(),
	}
}

// Name returns the event kind name.
func (e *Event) Name() string {
	return e.name
}

// Data returns the optional payload, nil when absent.
func (e *Event) Data() any {
	return e.data
}

// Timestamp returns the construction timestamp.
func (e *Event) Timestamp() string {
	return e.timestamp
}

// Describe returns the protocol event description, keyed by event
// name.
func (e *Event) Describe() map[string]any {
	inner := map[string]any{
		"timestamp": e.timestamp,
	}
	if e.data != nil {
		inner["data"] = e.data
	}
	return map[string]any{e.name: inner}
}
