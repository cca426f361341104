package thing

// NotificationKind discriminates fan-out notifications. The values
// double as the protocol messageType strings.
type NotificationKind string

const (
	// NotificationProperty reports a property value change to
	// thing-wide subscribers.
	NotificationProperty NotificationKind = "propertyStatus"

	// NotificationAction reports an action lifecycle transition to
	// thing-wide subscribers.
	NotificationAction NotificationKind = "actionStatus"

	// NotificationEvent reports an event occurrence to subscribers
	// registered for that event name.
	NotificationEvent NotificationKind = "event"
)

// Notification is one fan-out message from a thing to a subscriber.
// Data carries the protocol payload verbatim: {name: value} for
// property changes, the action description for lifecycle transitions,
// and the event description for occurrences.
type Notification struct {
	Kind    NotificationKind
	ThingID string
	Data    map[string]any
}

// Subscriber is an opaque handle registered with a thing to receive
// fan-out notifications.
//
// Notify must not block: delivery is best-effort and a slow or broken
// subscriber must absorb (drop, buffer, log) its own failures rather
// than stall the mutation that triggered the fan-out. A panic inside
// Notify is recovered by the thing and the delivery dropped; it never
// reaches the caller of the triggering operation.
//
// Implementations must be comparable (pointer receivers are), as the
// handle itself keys the subscriber registry.
type Subscriber interface {
	Notify(n Notification)
}

// subscription tracks what one handle is registered for: the whole
// thing, specific event names, or both. The single registry keyed by
// handle keeps thing-wide removal and per-event purging atomic.
type subscription struct {
	thingWide bool
	events    map[string]struct{}
}

func (s *subscription) empty() bool {
	return !s.thingWide && len(s.events) == 0
}
