package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// newWSServer starts a live HTTP server around the container so the
// real upgrade handshake runs.
func newWSServer(t *testing.T, container thing.Container) (*Server, *httptest.Server) {
	t.Helper()

	srv, router := newTestServer(t, container, testConfig())
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return srv, ts
}

// dialThing opens a WebSocket connection to the thing path.
func dialThing(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws://" + strings.TrimPrefix(ts.URL, "http://") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial %s: %v", url, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readFrame reads one protocol frame and returns its type and data.
func readFrame(t *testing.T, ws *websocket.Conn) (string, map[string]any) {
	t.Helper()

	//nolint:errcheck // Best-effort test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]any
	if err := ws.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}

	msgType, _ := frame["messageType"].(string)
	data, _ := frame["data"].(map[string]any)
	if msgType == "" || data == nil {
		t.Fatalf("malformed frame: %v", frame)
	}
	return msgType, data
}

// ─── WebSocket Protocol Tests ──────────────────────────────────────

func TestWebSocket_SetProperty(t *testing.T) {
	lamp := newLamp(t)
	_, ts := newWSServer(t, thing.NewSingleThing(lamp))
	ws := dialThing(t, ts, "/")

	err := ws.WriteJSON(map[string]any{
		"messageType": "setProperty",
		"data":        map[string]any{"level": 37},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	msgType, data := readFrame(t, ws)
	if msgType != "propertyStatus" {
		t.Fatalf("messageType = %q, want propertyStatus", msgType)
	}
	if data["level"] != 37.0 {
		t.Errorf("level = %v, want 37", data["level"])
	}

	got, err := lamp.GetProperty("level")
	if err != nil {
		t.Fatalf("GetProperty() error = %v", err)
	}
	if got != 37.0 {
		t.Errorf("stored level = %v, want 37", got)
	}
}

func TestWebSocket_SetPropertyRejected(t *testing.T) {
	lamp := newLamp(t)
	_, ts := newWSServer(t, thing.NewSingleThing(lamp))
	ws := dialThing(t, ts, "/")

	// One bad key and one good key in the same message: the bad one
	// yields an error frame, the good one is still applied.
	err := ws.WriteJSON(map[string]any{
		"messageType": "setProperty",
		"data":        map[string]any{"level": 2000, "on": false},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var sawError, sawStatus bool
	for i := 0; i < 2; i++ {
		msgType, data := readFrame(t, ws)
		switch msgType {
		case "error":
			sawError = true
			if data["status"] != "400 Bad Request" {
				t.Errorf("error status = %v, want 400 Bad Request", data["status"])
			}
			if msg, _ := data["message"].(string); msg == "" {
				t.Error("error frame has no message")
			}
		case "propertyStatus":
			sawStatus = true
			if data["on"] != false {
				t.Errorf("propertyStatus = %v, want on=false", data)
			}
		default:
			t.Fatalf("unexpected messageType %q", msgType)
		}
	}
	if !sawError || !sawStatus {
		t.Fatalf("frames seen: error=%v propertyStatus=%v, want both", sawError, sawStatus)
	}

	got, _ := lamp.GetProperty("level")
	if got != 50.0 {
		t.Errorf("level after rejected write = %v, want 50", got)
	}
	on, _ := lamp.GetProperty("on")
	if on != false {
		t.Errorf("on = %v, want false", on)
	}
}

func TestWebSocket_RequestAction(t *testing.T) {
	lamp := newLamp(t)
	_, ts := newWSServer(t, thing.NewSingleThing(lamp))
	ws := dialThing(t, ts, "/")

	err := ws.WriteJSON(map[string]any{
		"messageType": "requestAction",
		"data":        map[string]any{"fade": map[string]any{"input": map[string]any{"level": 5}}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	// created, pending, completed arrive in order. The work body sets
	// the level property, so a propertyStatus frame lands in between.
	var statuses []string
	for {
		msgType, data := readFrame(t, ws)
		if msgType == "propertyStatus" {
			continue
		}
		if msgType != "actionStatus" {
			t.Fatalf("messageType = %q, want actionStatus", msgType)
		}
		record, ok := data["fade"].(map[string]any)
		if !ok {
			t.Fatalf("frame data = %v, want fade key", data)
		}
		status, _ := record["status"].(string)
		statuses = append(statuses, status)
		if status == string(thing.ActionCompleted) {
			break
		}
		if len(statuses) > 10 {
			t.Fatalf("action never completed, statuses = %v", statuses)
		}
	}

	if statuses[0] != string(thing.ActionCreated) {
		t.Errorf("first status = %q, want %s", statuses[0], thing.ActionCreated)
	}

	got, _ := lamp.GetProperty("level")
	if got != 5.0 {
		t.Errorf("level after fade = %v, want 5", got)
	}
}

func TestWebSocket_RequestActionRejected(t *testing.T) {
	_, ts := newWSServer(t, thing.NewSingleThing(newLamp(t)))
	ws := dialThing(t, ts, "/")

	err := ws.WriteJSON(map[string]any{
		"messageType": "requestAction",
		"data":        map[string]any{"warp": map[string]any{"input": map[string]any{}}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	msgType, data := readFrame(t, ws)
	if msgType != "error" {
		t.Fatalf("messageType = %q, want error", msgType)
	}
	if data["message"] != "Invalid action request" {
		t.Errorf("message = %v, want Invalid action request", data["message"])
	}
	request, ok := data["request"].(map[string]any)
	if !ok {
		t.Fatalf("error frame does not echo the request: %v", data)
	}
	if request["messageType"] != "requestAction" {
		t.Errorf("echoed messageType = %v, want requestAction", request["messageType"])
	}
}

func TestWebSocket_EventSubscription(t *testing.T) {
	lamp := newLamp(t)
	_, ts := newWSServer(t, thing.NewSingleThing(lamp))

	subscribed := dialThing(t, ts, "/")
	bystander := dialThing(t, ts, "/")

	err := subscribed.WriteJSON(map[string]any{
		"messageType": "addEventSubscription",
		"data":        map[string]any{"overheated": map[string]any{}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	// The registration races the AddEvent below, so give the server a
	// moment to process the frame.
	time.Sleep(50 * time.Millisecond)
	lamp.AddEvent(thing.NewEvent("overheated", 99.0))

	msgType, data := readFrame(t, subscribed)
	if msgType != "event" {
		t.Fatalf("messageType = %q, want event", msgType)
	}
	event, ok := data["overheated"].(map[string]any)
	if !ok {
		t.Fatalf("frame data = %v, want overheated key", data)
	}
	if event["data"] != 99.0 {
		t.Errorf("event data = %v, want 99", event["data"])
	}
	if event["timestamp"] == "" {
		t.Error("event has no timestamp")
	}

	// The unsubscribed client stays silent
	//nolint:errcheck // Deadline expiry is the assertion
	bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var frame map[string]any
	if err := bystander.ReadJSON(&frame); err == nil {
		t.Fatalf("unsubscribed client received frame: %v", frame)
	}
}

func TestWebSocket_MalformedMessages(t *testing.T) {
	_, ts := newWSServer(t, thing.NewSingleThing(newLamp(t)))
	ws := dialThing(t, ts, "/")

	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{"invalid json", `{"messageType": `, "Parsing request failed"},
		{"missing data", `{"messageType": "setProperty"}`, "Invalid message"},
		{"missing type", `{"data": {"level": 1}}`, "Invalid message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatalf("write: %v", err)
			}
			msgType, data := readFrame(t, ws)
			if msgType != "error" {
				t.Fatalf("messageType = %q, want error", msgType)
			}
			if data["message"] != tt.message {
				t.Errorf("message = %v, want %q", data["message"], tt.message)
			}
			if data["status"] != "400 Bad Request" {
				t.Errorf("status = %v, want 400 Bad Request", data["status"])
			}
		})
	}
}

func TestWebSocket_UnknownMessageType(t *testing.T) {
	_, ts := newWSServer(t, thing.NewSingleThing(newLamp(t)))
	ws := dialThing(t, ts, "/")

	err := ws.WriteJSON(map[string]any{
		"messageType": "warpDrive",
		"data":        map[string]any{},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	msgType, data := readFrame(t, ws)
	if msgType != "error" {
		t.Fatalf("messageType = %q, want error", msgType)
	}
	if data["message"] != "Unknown messageType: warpDrive" {
		t.Errorf("message = %v, want Unknown messageType: warpDrive", data["message"])
	}
	if _, ok := data["request"].(map[string]any); !ok {
		t.Errorf("error frame does not echo the request: %v", data)
	}
}

func TestWebSocket_ReplaysLiveActions(t *testing.T) {
	lamp := newLamp(t)
	_, ts := newWSServer(t, thing.NewSingleThing(lamp))

	if _, err := lamp.RequestAction("fade", map[string]any{"level": 60.0}); err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}

	// A client connecting after the request sees the record replayed
	ws := dialThing(t, ts, "/")

	msgType, data := readFrame(t, ws)
	if msgType != "actionStatus" {
		t.Fatalf("messageType = %q, want actionStatus", msgType)
	}
	record, ok := data["fade"].(map[string]any)
	if !ok {
		t.Fatalf("frame data = %v, want fade key", data)
	}
	if record["status"] != string(thing.ActionCreated) {
		t.Errorf("replayed status = %v, want %s", record["status"], thing.ActionCreated)
	}
}

func TestWebSocket_ClientTracking(t *testing.T) {
	srv, ts := newWSServer(t, thing.NewSingleThing(newLamp(t)))

	if got := srv.hub.ClientCount(); got != 0 {
		t.Fatalf("ClientCount() = %d, want 0", got)
	}

	ws := dialThing(t, ts, "/")
	waitForClients(t, srv.hub, 1)

	ws.Close()
	waitForClients(t, srv.hub, 0)
}

func TestWebSocket_MultipleThingsPath(t *testing.T) {
	lamp := newLamp(t)
	sensor := thing.NewThing("urn:dev:ops:sensor-1", "Test Sensor", nil, "")
	container := thing.NewMultipleThings("LampAndSensor", lamp, sensor)
	_, ts := newWSServer(t, container)

	ws := dialThing(t, ts, "/0")

	err := ws.WriteJSON(map[string]any{
		"messageType": "setProperty",
		"data":        map[string]any{"on": false},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	msgType, data := readFrame(t, ws)
	if msgType != "propertyStatus" {
		t.Fatalf("messageType = %q, want propertyStatus", msgType)
	}
	if data["on"] != false {
		t.Errorf("frame data = %v, want on=false", data)
	}
}

// waitForClients polls the hub until it reports the wanted count.
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
}
