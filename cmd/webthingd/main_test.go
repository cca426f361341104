package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WebThingsIO/webthing-go/internal/bridge"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/config"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/mqtt"
	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/webthingd.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_NoThings verifies run refuses a configuration that declares
// nothing to expose.
func TestRun_NoThings(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 18080

logging:
  level: error
  format: text
  output: stdout

mdns:
  enabled: false

mqtt:
  enabled: false

history:
  enabled: false

telemetry:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil {
		t.Fatal("run() should fail with no declared things")
	}
	if !strings.Contains(err.Error(), "no things") {
		t.Errorf("error = %v, want no-things complaint", err)
	}
}

// TestResolveConfigPath_Default verifies the default config path.
func TestResolveConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("WEBTHING_CONFIG")
	defer os.Setenv("WEBTHING_CONFIG", originalEnv)

	os.Unsetenv("WEBTHING_CONFIG")

	if path := resolveConfigPath(""); path != defaultConfigPath {
		t.Errorf("resolveConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestResolveConfigPath_EnvOverride verifies environment variable override.
func TestResolveConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("WEBTHING_CONFIG")
	defer os.Setenv("WEBTHING_CONFIG", originalEnv)

	expected := "/custom/path/webthingd.yaml"
	os.Setenv("WEBTHING_CONFIG", expected)

	if path := resolveConfigPath(""); path != expected {
		t.Errorf("resolveConfigPath() = %q, want %q", path, expected)
	}
}

// TestResolveConfigPath_FlagWins verifies the flag beats the environment.
func TestResolveConfigPath_FlagWins(t *testing.T) {
	originalEnv := os.Getenv("WEBTHING_CONFIG")
	defer os.Setenv("WEBTHING_CONFIG", originalEnv)

	os.Setenv("WEBTHING_CONFIG", "/from/env.yaml")

	if path := resolveConfigPath("/from/flag.yaml"); path != "/from/flag.yaml" {
		t.Errorf("resolveConfigPath() = %q, want /from/flag.yaml", path)
	}
}

func lampConfig() config.ThingConfig {
	return config.ThingConfig{
		ID:    "urn:dev:ops:lamp-1",
		Title: "Lamp",
		Types: []string{"Light"},
		Properties: []config.PropertyConfig{
			{
				Name:    "brightness",
				Type:    "number",
				Unit:    "percent",
				Minimum: floatPtr(0),
				Maximum: floatPtr(100),
				Initial: 50.0,
			},
			{Name: "on", Type: "boolean", Initial: true},
		},
		Actions: []config.ActionConfig{
			{
				Name:  "fade",
				Title: "Fade",
				Input: map[string]any{
					"type":     "object",
					"required": []any{"level"},
					"properties": map[string]any{
						"level": map[string]any{"type": "number"},
					},
				},
			},
		},
		Events: []config.EventConfig{
			{Name: "overheated", Type: "number", Unit: "degree celsius"},
		},
	}
}

func floatPtr(f float64) *float64 { return &f }

// TestBuildThing verifies a declared thing comes out with working
// properties, schema-validated actions, and registered events.
func TestBuildThing(t *testing.T) {
	tc := lampConfig()
	th := thing.NewThing(tc.ID, tc.Title, tc.Types, tc.Description)

	if err := buildThing(th, tc, nil); err != nil {
		t.Fatalf("buildThing() error = %v", err)
	}

	v, err := th.GetProperty("brightness")
	if err != nil {
		t.Fatalf("GetProperty() error = %v", err)
	}
	if v != 50.0 {
		t.Errorf("brightness = %v, want 50", v)
	}

	// Declared bounds are enforced
	if err := th.SetProperty("brightness", 150.0); err == nil {
		t.Error("out-of-range write accepted")
	}
	if err := th.SetProperty("brightness", 75.0); err != nil {
		t.Errorf("in-range write rejected: %v", err)
	}

	// Declared input schema is enforced
	if _, err := th.RequestAction("fade", map[string]any{}); err == nil {
		t.Error("action request without required input accepted")
	}
	a, err := th.RequestAction("fade", map[string]any{"level": 10.0})
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}

	// Without a bridge the work body is nil, so the action completes
	// as soon as it starts
	a.Start()
	if got := a.Status(); got != thing.ActionCompleted {
		t.Errorf("Status() = %q, want %q", got, thing.ActionCompleted)
	}

	var hasEvent bool
	for _, name := range th.AvailableEvents() {
		if name == "overheated" {
			hasEvent = true
		}
	}
	if !hasEvent {
		t.Error("overheated event not registered")
	}
}

// capturingClient records published messages for wiring assertions.
type capturingClient struct {
	mu        sync.Mutex
	published map[string][]byte
}

func newCapturingClient() *capturingClient {
	return &capturingClient{published: make(map[string][]byte)}
}

func (c *capturingClient) Publish(topic string, payload []byte, _ byte, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published[topic] = payload
	return nil
}

func (c *capturingClient) Subscribe(string, byte, mqtt.MessageHandler) error { return nil }

func (c *capturingClient) IsConnected() bool { return true }

func (c *capturingClient) payload(topic string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.published[topic]
	return p, ok
}

// TestBuildThing_ForwardsThroughBridge verifies a property declared
// with forward: true publishes accepted writes to its set topic, and a
// declared action dispatches its input to the request topic.
func TestBuildThing_ForwardsThroughBridge(t *testing.T) {
	tc := lampConfig()
	tc.Properties[0].Forward = true

	th := thing.NewThing(tc.ID, tc.Title, tc.Types, tc.Description)
	client := newCapturingClient()
	b := bridge.New(client, thing.NewSingleThing(th), config.MQTTConfig{
		TopicPrefix: "webthings",
		QoS:         1,
	})

	if err := buildThing(th, tc, b); err != nil {
		t.Fatalf("buildThing() error = %v", err)
	}

	if err := th.SetProperty("brightness", 80.0); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}

	setTopic := "webthings/things/urn:dev:ops:lamp-1/properties/brightness/set"
	payload, ok := client.payload(setTopic)
	if !ok {
		t.Fatalf("no publish on %s", setTopic)
	}
	var forwarded float64
	if err := json.Unmarshal(payload, &forwarded); err != nil {
		t.Fatalf("unmarshal forwarded write: %v", err)
	}
	if forwarded != 80.0 {
		t.Errorf("forwarded value = %v, want 80", forwarded)
	}

	// The unforwarded property stays local
	if err := th.SetProperty("on", false); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}
	if _, ok := client.payload("webthings/things/urn:dev:ops:lamp-1/properties/on/set"); ok {
		t.Error("unforwarded property published a set message")
	}

	// Declared actions dispatch their input
	a, err := th.RequestAction("fade", map[string]any{"level": 20.0})
	if err != nil {
		t.Fatalf("RequestAction() error = %v", err)
	}
	a.Start()

	reqTopic := "webthings/things/urn:dev:ops:lamp-1/actions/fade/request"
	payload, ok = client.payload(reqTopic)
	if !ok {
		t.Fatalf("no publish on %s", reqTopic)
	}
	var input map[string]any
	if err := json.Unmarshal(payload, &input); err != nil {
		t.Fatalf("unmarshal dispatched input: %v", err)
	}
	if input["level"] != 20.0 {
		t.Errorf("dispatched input = %v, want level 20", input)
	}
}

// TestHealthCheck_AllDisabled verifies disabled subsystems pass.
func TestHealthCheck_AllDisabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
}
