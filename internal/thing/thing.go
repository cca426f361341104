package thing

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// defaultContext is the JSON-LD context advertised in thing
// descriptions.
const defaultContext = "https://webthings.io/schemas"

// Logger defines the logging interface used by the thing package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// availableAction is one registered action kind: its description
// metadata, the compiled input schema when the metadata declares one,
// and the work body new records of this kind will run.
type availableAction struct {
	metadata map[string]any
	schema   *gojsonschema.Schema
	work     ActionWork
}

// availableEvent is one registered event kind.
type availableEvent struct {
	metadata map[string]any
}

// Thing is the aggregate root: it owns properties, action kinds and
// their live records, event kinds and the event log, and the
// subscriber registry. Every mutation and every notification goes
// through it.
//
// All public methods are thread-safe. Mutations on one Thing are
// serialised; distinct Things never coordinate.
type Thing struct {
	mu               sync.RWMutex
	id               string
	title            string
	atContext        string
	types            []string
	description      string
	uiHref           string
	hrefPrefix       string
	mounted          bool
	properties       map[string]*Property
	availableActions map[string]*availableAction
	actions          map[string][]*Action
	availableEvents  map[string]*availableEvent
	events           []*Event
	subscribers      map[Subscriber]*subscription
	logger           Logger
}

// NewThing creates a thing with the given identity. Types are the
// capability tags advertised as "@type"; pass nil for an untyped
// thing.
func NewThing(id, title string, types []string, description string) *Thing {
	return &Thing{
		id:               id,
		title:            title,
		atContext:        defaultContext,
		types:            types,
		description:      description,
		properties:       make(map[string]*Property),
		availableActions: make(map[string]*availableAction),
		actions:          make(map[string][]*Action),
		availableEvents:  make(map[string]*availableEvent),
		subscribers:      make(map[Subscriber]*subscription),
		logger:           noopLogger{},
	}
}

// SetLogger sets the logger for the thing.
func (t *Thing) SetLogger(logger Logger) {
	t.logger = logger
}

// ID returns the thing identifier.
func (t *Thing) ID() string {
	return t.id
}

// Title returns the human-readable title.
func (t *Thing) Title() string {
	return t.title
}

// Description returns the human-readable description.
func (t *Thing) Description() string {
	return t.description
}

// Types returns a copy of the capability tags.
func (t *Thing) Types() []string {
	out := make([]string, len(t.types))
	copy(out, t.types)
	return out
}

// SetUIHref sets an optional link to a human-facing UI for this thing,
// advertised as an alternate link in the description.
func (t *Thing) SetUIHref(href string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uiHref = href
}

// UIHref returns the UI link, empty when none is set.
func (t *Thing) UIHref() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.uiHref
}

// SetHrefPrefix assigns the href prefix for this thing and everything
// it owns. The prefix is assigned once, by the container at mount
// time; later calls are ignored.
func (t *Thing) SetHrefPrefix(prefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mounted {
		return
	}
	t.mounted = true
	t.hrefPrefix = prefix
	for _, p := range t.properties {
		p.setHrefPrefix(prefix)
	}
	for _, records := range t.actions {
		for _, a := range records {
			a.setHrefPrefix(prefix)
		}
	}
}

// HrefPrefix returns the assigned prefix, empty for a root-mounted
// thing.
func (t *Thing) HrefPrefix() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hrefPrefix
}

// Href returns the thing's own href: the prefix, or "/" when
// root-mounted.
func (t *Thing) Href() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.hrefPrefix == "" {
		return "/"
	}
	return t.hrefPrefix
}

// Describe returns the Thing Description. It is computed fresh on
// every call so it always reflects current registration state.
func (t *Thing) Describe() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	properties := make(map[string]any, len(t.properties))
	for name, p := range t.properties {
		properties[name] = p.Describe()
	}

	actions := make(map[string]any, len(t.availableActions))
	for name, kind := range t.availableActions {
		meta := copyMeta(kind.metadata)
		meta["links"] = []map[string]any{
			{
				"rel":  "action",
				"href": fmt.Sprintf("%s/actions/%s", t.hrefPrefix, name),
			},
		}
		actions[name] = meta
	}

	events := make(map[string]any, len(t.availableEvents))
	for name, kind := range t.availableEvents {
		meta := copyMeta(kind.metadata)
		meta["links"] = []map[string]any{
			{
				"rel":  "event",
				"href": fmt.Sprintf("%s/events/%s", t.hrefPrefix, name),
			},
		}
		events[name] = meta
	}

	desc := map[string]any{
		"id":         t.id,
		"title":      t.title,
		"@context":   t.atContext,
		"properties": properties,
		"actions":    actions,
		"events":     events,
		"links": []map[string]any{
			{"rel": "properties", "href": t.hrefPrefix + "/properties"},
			{"rel": "actions", "href": t.hrefPrefix + "/actions"},
			{"rel": "events", "href": t.hrefPrefix + "/events"},
		},
	}

	if t.uiHref != "" {
		desc["links"] = append(desc["links"].([]map[string]any), map[string]any{
			"rel":       "alternate",
			"mediaType": "text/html",
			"href":      t.uiHref,
		})
	}
	if t.description != "" {
		desc["description"] = t.description
	}
	if len(t.types) > 0 {
		types := make([]string, len(t.types))
		copy(types, t.types)
		desc["@type"] = types
	}

	return desc
}

// copyMeta shallow-copies a metadata map so description building never
// mutates registered metadata.
func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// --- Properties ---

// AddProperty attaches a property to this thing and wires its value
// cell into the property-changed fan-out.
func (t *Thing) AddProperty(p *Property) {
	t.mu.Lock()
	p.thing = t
	p.setHrefPrefix(t.hrefPrefix)
	t.properties[p.name] = p
	t.mu.Unlock()

	name := p.name
	p.value.setNotifier(func(value any) {
		t.propertyNotify(name, value)
	})
	t.logger.Debug("property added", "thing", t.id, "property", name)
}

// RemoveProperty detaches a property. Further value changes on its
// cell no longer notify this thing.
func (t *Thing) RemoveProperty(name string) {
	t.mu.Lock()
	p, ok := t.properties[name]
	if ok {
		delete(t.properties, name)
	}
	t.mu.Unlock()

	if ok {
		p.value.setNotifier(nil)
		t.logger.Debug("property removed", "thing", t.id, "property", name)
	}
}

// FindProperty returns the named property, or nil when absent.
func (t *Thing) FindProperty(name string) *Property {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.properties[name]
}

// HasProperty reports whether the named property exists.
func (t *Thing) HasProperty(name string) bool {
	return t.FindProperty(name) != nil
}

// GetProperty returns the current value of the named property.
// Returns ErrPropertyNotFound for unknown names.
func (t *Thing) GetProperty(name string) (any, error) {
	p := t.FindProperty(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
	}
	return p.GetValue(), nil
}

// SetProperty validates and applies a write to the named property.
// Returns ErrPropertyNotFound for unknown names, ErrReadOnlyProperty
// or ErrInvalidValue when validation rejects the write.
func (t *Thing) SetProperty(name string, value any) error {
	p := t.FindProperty(name)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
	}
	return p.SetValue(value)
}

// Properties returns the current value of every property.
func (t *Thing) Properties() map[string]any {
	t.mu.RLock()
	props := make([]*Property, 0, len(t.properties))
	for _, p := range t.properties {
		props = append(props, p)
	}
	t.mu.RUnlock()

	out := make(map[string]any, len(props))
	for _, p := range props {
		out[p.name] = p.GetValue()
	}
	return out
}

// PropertyDescriptions returns every property description keyed by
// name.
func (t *Thing) PropertyDescriptions() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]any, len(t.properties))
	for name, p := range t.properties {
		out[name] = p.Describe()
	}
	return out
}

// propertyNotify fans a property change out to thing-wide
// subscribers. Runs synchronously inside the mutating call.
func (t *Thing) propertyNotify(name string, value any) {
	t.fanout(Notification{
		Kind:    NotificationProperty,
		ThingID: t.id,
		Data:    map[string]any{name: value},
	}, t.wideSubscribers())
}

// --- Actions ---

// AddAvailableAction registers an action kind. The metadata's "input"
// entry, when present, is compiled as the input schema new requests
// are validated against. The work body runs for each started record;
// a nil work body completes immediately.
func (t *Thing) AddAvailableAction(name string, metadata map[string]any, work ActionWork) error {
	kind := &availableAction{metadata: metadata, work: work}
	if metadata != nil {
		if input, ok := metadata["input"]; ok {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(input))
			if err != nil {
				return fmt.Errorf("compiling input schema for action %s: %w", name, err)
			}
			kind.schema = schema
		}
	}

	t.mu.Lock()
	t.availableActions[name] = kind
	if _, ok := t.actions[name]; !ok {
		t.actions[name] = []*Action{}
	}
	t.mu.Unlock()

	t.logger.Debug("action kind registered", "thing", t.id, "action", name)
	return nil
}

// RequestAction validates input against the kind's schema and creates
// a new record in the created state, appended to the live list, with
// the creation notification fired before RequestAction returns. The
// caller schedules record.Start separately.
//
// Returns ErrActionNotFound for unregistered names and
// ErrInvalidActionInput when the input fails the schema; neither
// produces a record or a notification.
func (t *Thing) RequestAction(name string, input map[string]any) (*Action, error) {
	t.mu.RLock()
	kind, ok := t.availableActions[name]
	prefix := t.hrefPrefix
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}

	if kind.schema != nil {
		result, err := kind.schema.Validate(gojsonschema.NewGoLoader(input))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidActionInput, name, err)
		}
		if !result.Valid() {
			reasons := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				reasons = append(reasons, desc.Description())
			}
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidActionInput, name, strings.Join(reasons, "; "))
		}
	}

	a := newAction(t, name, input, kind.work)
	a.setHrefPrefix(prefix)

	t.mu.Lock()
	t.actions[name] = append(t.actions[name], a)
	t.mu.Unlock()

	t.logger.Debug("action requested", "thing", t.id, "action", name, "id", a.id)
	t.actionNotify(a)
	return a, nil
}

// GetAction returns the live record matching the exact (name, id)
// pair. Returns ErrActionNotFound otherwise.
func (t *Thing) GetAction(name, id string) (*Action, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, a := range t.actions[name] {
		if a.id == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrActionNotFound, name, id)
}

// RemoveAction cancels and deletes the record matching the exact
// (name, id) pair, reporting whether one was found.
func (t *Thing) RemoveAction(name, id string) bool {
	a, err := t.GetAction(name, id)
	if err != nil {
		return false
	}

	// Cancel first so subscribers see the final transition while the
	// record is still addressable.
	a.Cancel()

	t.mu.Lock()
	records := t.actions[name]
	for i := range records {
		if records[i] == a {
			t.actions[name] = append(records[:i], records[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	t.logger.Debug("action removed", "thing", t.id, "action", name, "id", id)
	return true
}

// ActionDescriptions returns protocol descriptions of live records:
// every kind (sorted by name, append order within a kind) when name is
// empty, otherwise only that kind's records.
func (t *Thing) ActionDescriptions(name string) []map[string]any {
	t.mu.RLock()
	var records []*Action
	if name == "" {
		names := make([]string, 0, len(t.actions))
		for n := range t.actions {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			records = append(records, t.actions[n]...)
		}
	} else {
		records = append(records, t.actions[name]...)
	}
	t.mu.RUnlock()

	descs := make([]map[string]any, 0, len(records))
	for _, a := range records {
		descs = append(descs, a.Describe())
	}
	return descs
}

// actionNotify fans a lifecycle transition out to thing-wide
// subscribers.
func (t *Thing) actionNotify(a *Action) {
	t.fanout(Notification{
		Kind:    NotificationAction,
		ThingID: t.id,
		Data:    a.Describe(),
	}, t.wideSubscribers())
}

// --- Events ---

// AddAvailableEvent registers an event kind. Only registered kinds are
// delivered to event subscribers; unregistered events still land in
// the log.
func (t *Thing) AddAvailableEvent(name string, metadata map[string]any) {
	t.mu.Lock()
	t.availableEvents[name] = &availableEvent{metadata: metadata}
	t.mu.Unlock()
}

// AvailableEvents returns the registered event kind names.
func (t *Thing) AvailableEvents() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.availableEvents))
	for name := range t.availableEvents {
		names = append(names, name)
	}
	return names
}

// AddEvent appends an event to the log and delivers it to subscribers
// of that event name only. The log is unbounded and append-only.
func (t *Thing) AddEvent(e *Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	_, registered := t.availableEvents[e.name]
	var subs []Subscriber
	if registered {
		for s, sub := range t.subscribers {
			if _, ok := sub.events[e.name]; ok {
				subs = append(subs, s)
			}
		}
	}
	t.mu.Unlock()

	t.logger.Debug("event added", "thing", t.id, "event", e.name)
	if !registered {
		return
	}
	t.fanout(Notification{
		Kind:    NotificationEvent,
		ThingID: t.id,
		Data:    e.Describe(),
	}, subs)
}

// EventDescriptions returns the event log in append order, optionally
// filtered to one event name. The log is never truncated.
func (t *Thing) EventDescriptions(name string) []map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	descs := make([]map[string]any, 0, len(t.events))
	for _, e := range t.events {
		if name != "" && e.name != name {
			continue
		}
		descs = append(descs, e.Describe())
	}
	return descs
}

// --- Subscribers ---

// Subscribe registers a handle for thing-wide notifications: property
// changes and action lifecycle transitions.
func (t *Thing) Subscribe(s Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscriptionLocked(s).thingWide = true
}

// Unsubscribe removes a handle entirely, including every per-event
// registration it holds.
func (t *Thing) Unsubscribe(s Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers, s)
}

// SubscribeToEvent registers a handle for occurrences of one event
// name. Unregistered event names are ignored.
func (t *Thing) SubscribeToEvent(name string, s Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.availableEvents[name]; !ok {
		return
	}
	t.subscriptionLocked(s).events[name] = struct{}{}
}

// UnsubscribeFromEvent removes a handle's registration for one event
// name, leaving any thing-wide registration intact.
func (t *Thing) UnsubscribeFromEvent(name string, s Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.subscribers[s]
	if !ok {
		return
	}
	delete(sub.events, name)
	if sub.empty() {
		delete(t.subscribers, s)
	}
}

// subscriptionLocked returns the handle's registry entry, creating it
// on first use. Caller holds t.mu.
func (t *Thing) subscriptionLocked(s Subscriber) *subscription {
	sub, ok := t.subscribers[s]
	if !ok {
		sub = &subscription{events: make(map[string]struct{})}
		t.subscribers[s] = sub
	}
	return sub
}

// wideSubscribers snapshots the thing-wide audience so fan-out never
// iterates the live registry.
func (t *Thing) wideSubscribers() []Subscriber {
	t.mu.RLock()
	defer t.mu.RUnlock()
	subs := make([]Subscriber, 0, len(t.subscribers))
	for s, sub := range t.subscribers {
		if sub.thingWide {
			subs = append(subs, s)
		}
	}
	return subs
}

// fanout delivers one notification to each subscriber in the
// snapshot. Delivery is best-effort: a failing subscriber never blocks
// the others or the triggering operation.
func (t *Thing) fanout(n Notification, subs []Subscriber) {
	for _, s := range subs {
		t.deliver(s, n)
	}
}

// deliver hands one notification to one subscriber, absorbing panics
// so a broken handle cannot surface into the mutating call.
func (t *Thing) deliver(s Subscriber, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Debug("notification delivery dropped",
				"thing", t.id, "kind", string(n.Kind), "reason", r)
		}
	}()
	s.Notify(n)
}
