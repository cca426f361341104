package mqtt

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "webthings"

// Topics builds gateway MQTT topics under a configurable prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Prefix: "webthings"}
//	setTopic := topics.PropertySet("urn:dev:ops:lamp-1", "level")
//	// Returns: "webthings/things/urn:dev:ops:lamp-1/properties/level/set"
//
// Thing IDs and property, action, and event names appear verbatim as
// topic levels. MQTT reserves only '/', '+', and '#', so URN-style IDs
// are safe.
type Topics struct {
	// Prefix is the root topic level. Empty means DefaultPrefix.
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// =============================================================================
// Property Topics
// =============================================================================

// Property returns the retained mirror topic for a property's current value.
//
// Example: webthings/things/urn:dev:ops:lamp-1/properties/level
func (t Topics) Property(thingID, name string) string {
	return fmt.Sprintf("%s/things/%s/properties/%s", t.prefix(), thingID, name)
}

// PropertySet returns the topic accepted writes are forwarded to.
// Devices subscribe here to apply gateway-side writes.
//
// Example: webthings/things/urn:dev:ops:lamp-1/properties/level/set
func (t Topics) PropertySet(thingID, name string) string {
	return fmt.Sprintf("%s/things/%s/properties/%s/set", t.prefix(), thingID, name)
}

// PropertyState returns the topic devices report observed values on.
// The gateway subscribes here and applies updates without forwarding
// them back.
//
// Example: webthings/things/urn:dev:ops:lamp-1/properties/level/state
func (t Topics) PropertyState(thingID, name string) string {
	return fmt.Sprintf("%s/things/%s/properties/%s/state", t.prefix(), thingID, name)
}

// =============================================================================
// Action Topics
// =============================================================================

// Action returns the topic action status transitions are mirrored to.
//
// Example: webthings/things/urn:dev:ops:lamp-1/actions/fade
func (t Topics) Action(thingID, name string) string {
	return fmt.Sprintf("%s/things/%s/actions/%s", t.prefix(), thingID, name)
}

// ActionRequest returns the topic action inputs are forwarded to.
// Devices subscribe here to execute gateway-requested actions.
//
// Example: webthings/things/urn:dev:ops:lamp-1/actions/fade/request
func (t Topics) ActionRequest(thingID, name string) string {
	return fmt.Sprintf("%s/things/%s/actions/%s/request", t.prefix(), thingID, name)
}

// =============================================================================
// Event Topics
// =============================================================================

// Event returns the topic emitted events are mirrored to.
//
// Example: webthings/things/urn:dev:ops:lamp-1/events/overheated
func (t Topics) Event(thingID, name string) string {
	return fmt.Sprintf("%s/things/%s/events/%s", t.prefix(), thingID, name)
}

// =============================================================================
// Gateway Topics
// =============================================================================

// GatewayStatus returns the gateway online/offline status topic.
// The broker publishes the LWT here on unexpected disconnect.
//
// Example: webthings/gateway/status
func (t Topics) GatewayStatus() string {
	return fmt.Sprintf("%s/gateway/status", t.prefix())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllPropertyStates returns a pattern matching all device-reported
// property values.
//
// Pattern: webthings/things/+/properties/+/state
func (t Topics) AllPropertyStates() string {
	return fmt.Sprintf("%s/things/+/properties/+/state", t.prefix())
}

// AllThings returns a pattern matching all thing traffic.
// Use with caution - this receives ALL gateway traffic.
//
// Pattern: webthings/things/#
func (t Topics) AllThings() string {
	return fmt.Sprintf("%s/things/#", t.prefix())
}

// ParsePropertyState extracts the thing ID and property name from a
// state topic. Returns ok=false for topics that do not match the
// {prefix}/things/{id}/properties/{name}/state shape.
func (t Topics) ParsePropertyState(topic string) (thingID, name string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 6 {
		return "", "", false
	}
	if parts[0] != t.prefix() || parts[1] != "things" || parts[3] != "properties" || parts[5] != "state" {
		return "", "", false
	}
	if parts[2] == "" || parts[4] == "" {
		return "", "", false
	}
	return parts[2], parts[4], true
}
