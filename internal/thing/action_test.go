package thing

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAction_Lifecycle(t *testing.T) {
	lamp := testLamp(t)
	sub := &recordingSubscriber{}
	lamp.Subscribe(sub)

	a, err := lamp.RequestAction("fade", map[string]any{"level": 10, "duration": 0})
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}
	if got := a.Status(); got != ActionCreated {
		t.Fatalf("Status() = %q, want created", got)
	}
	if a.ID() == "" {
		t.Error("ID() is empty, want generated id")
	}
	if a.TimeRequested() == "" {
		t.Error("TimeRequested() is empty, want timestamp")
	}
	if a.TimeCompleted() != "" {
		t.Errorf("TimeCompleted() = %q, want empty before completion", a.TimeCompleted())
	}

	a.Start()

	if got := a.Status(); got != ActionCompleted {
		t.Errorf("Status() = %q, want completed", got)
	}
	if a.TimeCompleted() == "" {
		t.Error("TimeCompleted() is empty, want timestamp")
	}
	if a.TimeRequested() > a.TimeCompleted() {
		t.Errorf("timeRequested %q > timeCompleted %q, want monotonic",
			a.TimeRequested(), a.TimeCompleted())
	}

	statuses := sub.actionStatuses("fade")
	want := []string{"created", "pending", "completed"}
	if len(statuses) != len(want) {
		t.Fatalf("action notifications = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("notification %d = %q, want %q", i, statuses[i], want[i])
		}
	}
}

func TestAction_Cancel(t *testing.T) {
	t.Run("before start skips the work body", func(t *testing.T) {
		lamp := testLamp(t)
		a, err := lamp.RequestAction("fade", map[string]any{"level": 10, "duration": 0})
		if err != nil {
			t.Fatalf("RequestAction() error = %v", err)
		}

		if !a.Cancel() {
			t.Fatal("Cancel() = false, want true for live record")
		}
		if got := a.Status(); got != ActionCancelled {
			t.Errorf("Status() = %q, want cancelled", got)
		}

		a.Start()

		if got := a.Status(); got != ActionCancelled {
			t.Errorf("Status() after Start = %q, want cancelled", got)
		}
		if got, _ := lamp.GetProperty("level"); got != 50 {
			t.Errorf("level = %v, want 50: cancelled action must not run", got)
		}
	})

	t.Run("after completion is a no-op", func(t *testing.T) {
		lamp := testLamp(t)
		a, err := lamp.RequestAction("fade", map[string]any{"level": 10, "duration": 0})
		if err != nil {
			t.Fatalf("RequestAction() error = %v", err)
		}
		a.Start()

		if a.Cancel() {
			t.Error("Cancel() = true, want false for completed record")
		}
		if got := a.Status(); got != ActionCompleted {
			t.Errorf("Status() = %q, want completed", got)
		}
	})

	t.Run("cancels the work context", func(t *testing.T) {
		lamp := testLamp(t)
		entered := make(chan struct{})
		release := make(chan struct{})
		var ctxErr error

		err := lamp.AddAvailableAction("wait", nil, func(ctx context.Context, th *Thing, input map[string]any) error {
			close(entered)
			<-release
			ctxErr = ctx.Err()
			return nil
		})
		if err != nil {
			t.Fatalf("AddAvailableAction() error = %v", err)
		}

		a, err := lamp.RequestAction("wait", nil)
		if err != nil {
			t.Fatalf("RequestAction() error = %v", err)
		}
		done := make(chan struct{})
		go func() {
			a.Start()
			close(done)
		}()

		<-entered
		a.Cancel()
		close(release)
		<-done

		if !errors.Is(ctxErr, context.Canceled) {
			t.Errorf("work ctx.Err() = %v, want context.Canceled", ctxErr)
		}
		if got := a.Status(); got != ActionCancelled {
			t.Errorf("Status() = %q, want cancelled after mid-flight cancel", got)
		}
	})
}

func TestAction_WorkError(t *testing.T) {
	lamp := testLamp(t)
	sub := &recordingSubscriber{}
	lamp.Subscribe(sub)

	err := lamp.AddAvailableAction("reboot", nil, func(ctx context.Context, th *Thing, input map[string]any) error {
		return errors.New("device did not respond")
	})
	if err != nil {
		t.Fatalf("AddAvailableAction() error = %v", err)
	}

	a, err := lamp.RequestAction("reboot", nil)
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}
	a.Start()

	if got := a.Status(); got != ActionError {
		t.Errorf("Status() = %q, want error", got)
	}
	if a.Err() != "device did not respond" {
		t.Errorf("Err() = %q, want device did not respond", a.Err())
	}
	if a.TimeCompleted() == "" {
		t.Error("TimeCompleted() is empty, want timestamp on failed record")
	}

	statuses := sub.actionStatuses("reboot")
	want := []string{"created", "pending", "error"}
	if len(statuses) != len(want) {
		t.Fatalf("action notifications = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("notification %d = %q, want %q", i, statuses[i], want[i])
		}
	}

	desc := a.Describe()
	inner := desc["reboot"].(map[string]any)
	if inner["error"] != "device did not respond" {
		t.Errorf("description error = %v, want the failure message", inner["error"])
	}
}

func TestAction_WorkPanic(t *testing.T) {
	lamp := testLamp(t)

	err := lamp.AddAvailableAction("explode", nil, func(ctx context.Context, th *Thing, input map[string]any) error {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("AddAvailableAction() error = %v", err)
	}

	a, err := lamp.RequestAction("explode", nil)
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}
	a.Start()

	if got := a.Status(); got != ActionError {
		t.Errorf("Status() = %q, want error after panic", got)
	}
	if !strings.Contains(a.Err(), "boom") {
		t.Errorf("Err() = %q, want panic message", a.Err())
	}
}

func TestAction_Describe(t *testing.T) {
	lamp := testLamp(t)
	a, err := lamp.RequestAction("fade", map[string]any{"level": 25, "duration": 100})
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}

	desc := a.Describe()
	inner, ok := desc["fade"].(map[string]any)
	if !ok {
		t.Fatalf("Describe() = %v, want fade entry", desc)
	}
	if inner["status"] != "created" {
		t.Errorf("status = %v, want created", inner["status"])
	}
	if inner["href"] != "/actions/fade/"+a.ID() {
		t.Errorf("href = %v, want /actions/fade/%s", inner["href"], a.ID())
	}
	if inner["timeRequested"] == "" {
		t.Error("timeRequested missing")
	}
	if _, present := inner["timeCompleted"]; present {
		t.Error("timeCompleted present on live record, want absent")
	}
	input, ok := inner["input"].(map[string]any)
	if !ok || input["level"] != 25 {
		t.Errorf("input = %v, want the request payload", inner["input"])
	}
}
