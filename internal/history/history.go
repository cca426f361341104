package history

import (
	"context"
	"time"
)

// PropertyRecord is a single persisted property update.
//
// Values are stored as JSON so every property type round-trips through
// the store unchanged.
type PropertyRecord struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// ThingID is the identifier of the thing the property belongs to.
	ThingID string `json:"thingId"`

	// Property is the property name.
	Property string `json:"property"`

	// Value is the property value at the time of the update.
	Value any `json:"value"`

	// RecordedAt is when the update was persisted (UTC).
	RecordedAt time.Time `json:"recordedAt"`
}

// ActionRecord is a single persisted action lifecycle transition.
// Each transition of an action (created, pending, completed and so on)
// gets its own row, keyed by the action's request identifier.
type ActionRecord struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// ThingID is the identifier of the thing the action belongs to.
	ThingID string `json:"thingId"`

	// Action is the action kind name.
	Action string `json:"action"`

	// ActionID identifies the individual request across transitions.
	ActionID string `json:"actionId"`

	// Status is the lifecycle state at the time of the transition.
	Status string `json:"status"`

	// Input is the request input, if any.
	Input any `json:"input,omitempty"`

	// RecordedAt is when the transition was persisted (UTC).
	RecordedAt time.Time `json:"recordedAt"`
}

// EventRecord is a single persisted event occurrence.
type EventRecord struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// ThingID is the identifier of the thing that emitted the event.
	ThingID string `json:"thingId"`

	// Event is the event kind name.
	Event string `json:"event"`

	// Data is the event payload, if any.
	Data any `json:"data,omitempty"`

	// RecordedAt is when the occurrence was persisted (UTC).
	RecordedAt time.Time `json:"recordedAt"`
}

// Repository stores and retrieves thing history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// RecordProperty persists one property update.
	RecordProperty(ctx context.Context, thingID, property string, value any) error

	// RecordAction persists one action lifecycle transition.
	RecordAction(ctx context.Context, thingID, action, actionID, status string, input any) error

	// RecordEvent persists one event occurrence.
	RecordEvent(ctx context.Context, thingID, event string, data any) error

	// PropertyHistory returns recent property updates for the thing,
	// ordered newest first. The limit may be clamped.
	PropertyHistory(ctx context.Context, thingID string, limit int) ([]PropertyRecord, error)

	// ActionHistory returns recent action transitions for the thing,
	// ordered newest first. The limit may be clamped.
	ActionHistory(ctx context.Context, thingID string, limit int) ([]ActionRecord, error)

	// EventHistory returns recent event occurrences for the thing,
	// ordered newest first. The limit may be clamped.
	EventHistory(ctx context.Context, thingID string, limit int) ([]EventRecord, error)

	// Prune deletes records older than the given duration across all
	// history tables, returning the number of rows removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
