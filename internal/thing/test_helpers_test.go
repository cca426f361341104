package thing

import (
	"context"
	"sync"
	"testing"
)

// recordingSubscriber captures fan-out notifications for assertions.
type recordingSubscriber struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *recordingSubscriber) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// all returns a copy of everything received so far.
func (r *recordingSubscriber) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// ofKind returns received notifications of one kind, in order.
func (r *recordingSubscriber) ofKind(kind NotificationKind) []Notification {
	var out []Notification
	for _, n := range r.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// actionStatuses extracts the status strings of received actionStatus
// notifications for the named action, in delivery order.
func (r *recordingSubscriber) actionStatuses(name string) []string {
	var out []string
	for _, n := range r.ofKind(NotificationAction) {
		inner, ok := n.Data[name].(map[string]any)
		if !ok {
			continue
		}
		status, _ := inner["status"].(string)
		out = append(out, status)
	}
	return out
}

// panickingSubscriber blows up on every delivery, standing in for a
// handle whose transport died.
type panickingSubscriber struct{}

func (panickingSubscriber) Notify(Notification) {
	panic("send on closed channel")
}

// testLamp builds the canonical test thing: a lamp with a level
// property (number, 0-100, initial 50) and a fade action that sets it.
func testLamp(t *testing.T) *Thing {
	t.Helper()

	lamp := NewThing("urn:dev:ops:lamp-1", "Lamp", []string{"Light"}, "A test lamp")

	level, err := NewProperty("level", NewValue(50, nil), &Metadata{
		AtType:  "BrightnessProperty",
		Type:    "number",
		Minimum: Float(0),
		Maximum: Float(100),
		Unit:    "percent",
	})
	if err != nil {
		t.Fatalf("NewProperty() error = %v", err)
	}
	lamp.AddProperty(level)

	err = lamp.AddAvailableAction("fade", map[string]any{
		"title":       "Fade",
		"description": "Fade the lamp to a given level",
		"input": map[string]any{
			"type":     "object",
			"required": []any{"level", "duration"},
			"properties": map[string]any{
				"level": map[string]any{
					"type":    "number",
					"minimum": 0,
					"maximum": 100,
				},
				"duration": map[string]any{
					"type":    "number",
					"minimum": 0,
				},
			},
		},
	}, func(ctx context.Context, th *Thing, input map[string]any) error {
		return th.SetProperty("level", input["level"])
	})
	if err != nil {
		t.Fatalf("AddAvailableAction() error = %v", err)
	}

	lamp.AddAvailableEvent("overheated", map[string]any{
		"description": "The lamp has exceeded its safe operating temperature",
		"type":        "number",
		"unit":        "degree celsius",
	})

	return lamp
}
