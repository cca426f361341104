// Package bridge links exposed things to physical devices over MQTT.
//
// The bridge sits between the thing layer and the broker. It moves
// traffic in three directions:
//
//	                    ┌──────────────────┐
//	 accepted writes ──▶│                  │──▶ {prefix}/things/{id}/properties/{name}/set
//	 action requests ──▶│      Bridge      │──▶ {prefix}/things/{id}/actions/{name}/request
//	                    │                  │
//	 notifications  ──▶│  (mirror queue)  │──▶ {prefix}/things/{id}/properties|actions|events/{name}
//	                    │                  │
//	                    │                  │◀── {prefix}/things/+/properties/+/state
//	                    └──────────────────┘        (applied as external updates)
//
// Forwarder and ActionWork build the device-bound halves: a property
// constructed with a bridge forwarder publishes every accepted write to
// its set topic, and an action kind given bridge work publishes its
// validated input to the request topic when started.
//
// Device-reported values arrive on state topics and are applied with
// ExternalUpdate, so they never re-enter the forwarder. Value caching
// in the thing layer makes retained state replays after a reconnect
// harmless.
//
// Notifications are mirrored asynchronously through a bounded queue.
// When the queue is full the notification is dropped rather than
// stalling property writes.
package bridge
