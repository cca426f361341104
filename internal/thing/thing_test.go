package thing

import (
	"errors"
	"fmt"
	"testing"
)

func TestThing_SetProperty(t *testing.T) {
	t.Run("identical write produces no notification", func(t *testing.T) {
		lamp := testLamp(t)
		sub := &recordingSubscriber{}
		lamp.Subscribe(sub)

		if err := lamp.SetProperty("level", 50); err != nil {
			t.Fatalf("SetProperty() error = %v", err)
		}

		if got := len(sub.ofKind(NotificationProperty)); got != 0 {
			t.Errorf("property notifications = %d, want 0 for identical write", got)
		}
	})

	t.Run("real change notifies exactly once before returning", func(t *testing.T) {
		lamp := testLamp(t)
		sub := &recordingSubscriber{}
		lamp.Subscribe(sub)

		if err := lamp.SetProperty("level", 75); err != nil {
			t.Fatalf("SetProperty() error = %v", err)
		}

		got := sub.ofKind(NotificationProperty)
		if len(got) != 1 {
			t.Fatalf("property notifications = %d, want 1", len(got))
		}
		if got[0].Data["level"] != 75 {
			t.Errorf("notification payload = %v, want level=75", got[0].Data)
		}
		if got[0].ThingID != "urn:dev:ops:lamp-1" {
			t.Errorf("notification thing = %q, want urn:dev:ops:lamp-1", got[0].ThingID)
		}
	})

	t.Run("rejected write neither mutates nor notifies", func(t *testing.T) {
		lamp := testLamp(t)
		sub := &recordingSubscriber{}
		lamp.Subscribe(sub)

		if err := lamp.SetProperty("level", 101); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("SetProperty(101) error = %v, want ErrInvalidValue", err)
		}
		if got, _ := lamp.GetProperty("level"); got != 50 {
			t.Errorf("level = %v, want 50", got)
		}
		if got := len(sub.all()); got != 0 {
			t.Errorf("notifications = %d, want 0", got)
		}
	})

	t.Run("unknown property is not found", func(t *testing.T) {
		lamp := testLamp(t)
		if err := lamp.SetProperty("nope", 1); !errors.Is(err, ErrPropertyNotFound) {
			t.Errorf("SetProperty(nope) error = %v, want ErrPropertyNotFound", err)
		}
		if _, err := lamp.GetProperty("nope"); !errors.Is(err, ErrPropertyNotFound) {
			t.Errorf("GetProperty(nope) error = %v, want ErrPropertyNotFound", err)
		}
	})
}

func TestThing_Properties(t *testing.T) {
	lamp := testLamp(t)

	if !lamp.HasProperty("level") {
		t.Error("HasProperty(level) = false, want true")
	}
	if lamp.HasProperty("colour") {
		t.Error("HasProperty(colour) = true, want false")
	}

	values := lamp.Properties()
	if values["level"] != 50 {
		t.Errorf("Properties()[level] = %v, want 50", values["level"])
	}

	descs := lamp.PropertyDescriptions()
	if _, ok := descs["level"]; !ok {
		t.Error("PropertyDescriptions() missing level")
	}
}

func TestThing_RemoveProperty(t *testing.T) {
	lamp := testLamp(t)
	sub := &recordingSubscriber{}
	lamp.Subscribe(sub)

	p := lamp.FindProperty("level")
	lamp.RemoveProperty("level")

	if lamp.HasProperty("level") {
		t.Error("HasProperty(level) = true after removal")
	}

	// A detached cell no longer notifies the thing.
	p.ExternalUpdate(99)
	if got := len(sub.all()); got != 0 {
		t.Errorf("notifications = %d, want 0 after removal", got)
	}
}

func TestThing_RequestAction(t *testing.T) {
	t.Run("unknown action name is not found", func(t *testing.T) {
		lamp := testLamp(t)
		_, err := lamp.RequestAction("warp", nil)
		if !errors.Is(err, ErrActionNotFound) {
			t.Errorf("RequestAction(warp) error = %v, want ErrActionNotFound", err)
		}
	})

	t.Run("schema rejection creates no record and no notification", func(t *testing.T) {
		lamp := testLamp(t)
		sub := &recordingSubscriber{}
		lamp.Subscribe(sub)

		_, err := lamp.RequestAction("fade", map[string]any{"level": 10})
		if !errors.Is(err, ErrInvalidActionInput) {
			t.Fatalf("RequestAction() error = %v, want ErrInvalidActionInput", err)
		}
		if got := len(lamp.ActionDescriptions("fade")); got != 0 {
			t.Errorf("live records = %d, want 0 after rejection", got)
		}
		if got := len(sub.all()); got != 0 {
			t.Errorf("notifications = %d, want 0 after rejection", got)
		}
	})

	t.Run("out-of-range input is rejected by the schema", func(t *testing.T) {
		lamp := testLamp(t)
		_, err := lamp.RequestAction("fade", map[string]any{"level": 200, "duration": 0})
		if !errors.Is(err, ErrInvalidActionInput) {
			t.Errorf("RequestAction() error = %v, want ErrInvalidActionInput", err)
		}
	})

	t.Run("valid input creates a created-state record", func(t *testing.T) {
		lamp := testLamp(t)
		a, err := lamp.RequestAction("fade", map[string]any{"level": 10, "duration": 0})
		if err != nil {
			t.Fatalf("RequestAction() error = %v", err)
		}
		if got := a.Status(); got != ActionCreated {
			t.Errorf("Status() = %q, want created", got)
		}
		if got := len(lamp.ActionDescriptions("fade")); got != 1 {
			t.Errorf("live records = %d, want 1", got)
		}
	})
}

func TestThing_GetAction(t *testing.T) {
	lamp := testLamp(t)
	a, err := lamp.RequestAction("fade", map[string]any{"level": 10, "duration": 0})
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}

	got, err := lamp.GetAction("fade", a.ID())
	if err != nil {
		t.Fatalf("GetAction() error = %v", err)
	}
	if got != a {
		t.Error("GetAction() returned a different record")
	}

	if _, err := lamp.GetAction("fade", "bogus"); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("GetAction(bogus) error = %v, want ErrActionNotFound", err)
	}
	if _, err := lamp.GetAction("warp", a.ID()); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("GetAction(warp) error = %v, want ErrActionNotFound", err)
	}
}

func TestThing_RemoveAction(t *testing.T) {
	lamp := testLamp(t)
	sub := &recordingSubscriber{}
	lamp.Subscribe(sub)

	a, err := lamp.RequestAction("fade", map[string]any{"level": 10, "duration": 0})
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}

	if !lamp.RemoveAction("fade", a.ID()) {
		t.Fatal("RemoveAction() = false, want true")
	}
	if got := len(lamp.ActionDescriptions("fade")); got != 0 {
		t.Errorf("live records = %d, want 0 after removal", got)
	}

	// Removal cancels the live record first.
	statuses := sub.actionStatuses("fade")
	if len(statuses) != 2 || statuses[1] != "cancelled" {
		t.Errorf("action notifications = %v, want created then cancelled", statuses)
	}

	if lamp.RemoveAction("fade", a.ID()) {
		t.Error("RemoveAction() = true for already removed record, want false")
	}
	if lamp.RemoveAction("warp", a.ID()) {
		t.Error("RemoveAction() = true for unknown action name, want false")
	}
}

func TestThing_EventScoping(t *testing.T) {
	lamp := testLamp(t)

	wide := &recordingSubscriber{}
	scoped := &recordingSubscriber{}
	both := &recordingSubscriber{}

	lamp.Subscribe(wide)
	lamp.SubscribeToEvent("overheated", scoped)
	lamp.Subscribe(both)
	lamp.SubscribeToEvent("overheated", both)

	lamp.AddEvent(NewEvent("overheated", 104))

	if got := len(wide.ofKind(NotificationEvent)); got != 0 {
		t.Errorf("thing-wide subscriber event notifications = %d, want 0", got)
	}
	if got := len(scoped.ofKind(NotificationEvent)); got != 1 {
		t.Errorf("scoped subscriber event notifications = %d, want 1", got)
	}
	if got := len(both.ofKind(NotificationEvent)); got != 1 {
		t.Errorf("dual subscriber event notifications = %d, want 1", got)
	}

	// Unknown event names are ignored at subscription time.
	other := &recordingSubscriber{}
	lamp.SubscribeToEvent("frozen", other)
	lamp.AddEvent(NewEvent("frozen", nil))
	if got := len(other.all()); got != 0 {
		t.Errorf("unregistered event notifications = %d, want 0", got)
	}
}

func TestThing_EventLog(t *testing.T) {
	lamp := testLamp(t)
	lamp.AddAvailableEvent("rebooted", nil)

	const n = 5
	for i := 0; i < n; i++ {
		lamp.AddEvent(NewEvent("overheated", 100+i))
	}
	lamp.AddEvent(NewEvent("rebooted", nil))

	all := lamp.EventDescriptions("")
	if len(all) != n+1 {
		t.Fatalf("EventDescriptions() = %d entries, want %d", len(all), n+1)
	}

	overheated := lamp.EventDescriptions("overheated")
	if len(overheated) != n {
		t.Fatalf("EventDescriptions(overheated) = %d entries, want %d", len(overheated), n)
	}
	for i, desc := range overheated {
		inner := desc["overheated"].(map[string]any)
		if inner["data"] != 100+i {
			t.Errorf("entry %d data = %v, want %d: log must keep append order", i, inner["data"], 100+i)
		}
	}
}

func TestThing_Unsubscribe(t *testing.T) {
	lamp := testLamp(t)
	sub := &recordingSubscriber{}

	lamp.Subscribe(sub)
	lamp.SubscribeToEvent("overheated", sub)
	lamp.Unsubscribe(sub)

	lamp.SetProperty("level", 75)
	lamp.AddEvent(NewEvent("overheated", 104))

	// Thing-wide unsubscribe purges event registrations too.
	if got := len(sub.all()); got != 0 {
		t.Errorf("notifications = %d, want 0 after unsubscribe", got)
	}
}

func TestThing_UnsubscribeFromEvent(t *testing.T) {
	lamp := testLamp(t)
	sub := &recordingSubscriber{}

	lamp.Subscribe(sub)
	lamp.SubscribeToEvent("overheated", sub)
	lamp.UnsubscribeFromEvent("overheated", sub)

	lamp.AddEvent(NewEvent("overheated", 104))
	lamp.SetProperty("level", 75)

	if got := len(sub.ofKind(NotificationEvent)); got != 0 {
		t.Errorf("event notifications = %d, want 0 after event unsubscribe", got)
	}
	// The thing-wide registration survives.
	if got := len(sub.ofKind(NotificationProperty)); got != 1 {
		t.Errorf("property notifications = %d, want 1", got)
	}
}

func TestThing_FanoutSurvivesBrokenSubscriber(t *testing.T) {
	lamp := testLamp(t)
	healthy := &recordingSubscriber{}

	lamp.Subscribe(panickingSubscriber{})
	lamp.Subscribe(healthy)

	if err := lamp.SetProperty("level", 75); err != nil {
		t.Fatalf("SetProperty() error = %v: delivery failure must not surface", err)
	}
	if got := len(healthy.ofKind(NotificationProperty)); got != 1 {
		t.Errorf("healthy subscriber notifications = %d, want 1", got)
	}
}

func TestThing_Describe(t *testing.T) {
	lamp := testLamp(t)
	desc := lamp.Describe()

	if desc["id"] != "urn:dev:ops:lamp-1" {
		t.Errorf("id = %v, want urn:dev:ops:lamp-1", desc["id"])
	}
	if desc["title"] != "Lamp" {
		t.Errorf("title = %v, want Lamp", desc["title"])
	}
	if desc["@context"] != defaultContext {
		t.Errorf("@context = %v, want %q", desc["@context"], defaultContext)
	}
	if desc["description"] != "A test lamp" {
		t.Errorf("description = %v, want A test lamp", desc["description"])
	}

	types, ok := desc["@type"].([]string)
	if !ok || len(types) != 1 || types[0] != "Light" {
		t.Errorf("@type = %v, want [Light]", desc["@type"])
	}

	props := desc["properties"].(map[string]any)
	if _, ok := props["level"]; !ok {
		t.Error("properties missing level")
	}

	actions := desc["actions"].(map[string]any)
	fade, ok := actions["fade"].(map[string]any)
	if !ok {
		t.Fatal("actions missing fade")
	}
	fadeLinks := fade["links"].([]map[string]any)
	if fadeLinks[0]["href"] != "/actions/fade" {
		t.Errorf("fade link = %v, want /actions/fade", fadeLinks[0]["href"])
	}

	events := desc["events"].(map[string]any)
	if _, ok := events["overheated"]; !ok {
		t.Error("events missing overheated")
	}

	links := desc["links"].([]map[string]any)
	wantRels := map[string]string{
		"properties": "/properties",
		"actions":    "/actions",
		"events":     "/events",
	}
	for _, link := range links {
		rel := link["rel"].(string)
		if want, ok := wantRels[rel]; ok && link["href"] != want {
			t.Errorf("link %s = %v, want %v", rel, link["href"], want)
		}
	}

	// Description building must not leak links into registered metadata.
	second := lamp.Describe()
	secondFade := second["actions"].(map[string]any)["fade"].(map[string]any)
	if got := len(secondFade["links"].([]map[string]any)); got != 1 {
		t.Errorf("fade links after second Describe = %d, want 1", got)
	}
}

func TestThing_SetHrefPrefix(t *testing.T) {
	lamp := testLamp(t)
	a, err := lamp.RequestAction("fade", map[string]any{"level": 10, "duration": 0})
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}

	lamp.SetHrefPrefix("/4")

	if got := lamp.Href(); got != "/4" {
		t.Errorf("Href() = %q, want /4", got)
	}
	if got := lamp.FindProperty("level").Href(); got != "/4/properties/level" {
		t.Errorf("property href = %q, want /4/properties/level", got)
	}
	if got := a.Href(); got != fmt.Sprintf("/4/actions/fade/%s", a.ID()) {
		t.Errorf("action href = %q, want prefixed", got)
	}

	// The prefix is assigned once; later calls are ignored.
	lamp.SetHrefPrefix("/9")
	if got := lamp.Href(); got != "/4" {
		t.Errorf("Href() after second assignment = %q, want /4", got)
	}
}

func TestThing_EndToEndFade(t *testing.T) {
	lamp := testLamp(t)
	sub := &recordingSubscriber{}
	lamp.Subscribe(sub)

	a, err := lamp.RequestAction("fade", map[string]any{"level": 10, "duration": 0})
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}
	if got := a.Status(); got != ActionCreated {
		t.Fatalf("Status() = %q, want created before scheduling", got)
	}

	a.Start()

	if got := a.Status(); got != ActionCompleted {
		t.Errorf("Status() = %q, want completed", got)
	}
	if got, _ := lamp.GetProperty("level"); got != 10 {
		t.Errorf("level = %v, want 10", got)
	}

	propNotes := sub.ofKind(NotificationProperty)
	if len(propNotes) != 1 {
		t.Fatalf("property notifications = %d, want exactly 1", len(propNotes))
	}
	if propNotes[0].Data["level"] != 10 {
		t.Errorf("property payload = %v, want level=10", propNotes[0].Data)
	}

	statuses := sub.actionStatuses("fade")
	want := []string{"created", "pending", "completed"}
	if len(statuses) != len(want) {
		t.Fatalf("action notifications = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("action notification %d = %q, want %q", i, statuses[i], want[i])
		}
	}
}
