package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/WebThingsIO/webthing-go/internal/infrastructure/config"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/mqtt"
	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// notifyBuffer is the mirror queue depth. Notifications beyond this
// backlog are dropped.
const notifyBuffer = 256

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
// Satisfied by *mqtt.Client.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Logger is the logging interface used by the bridge.
// Satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is set.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bridge connects a container of things to devices over MQTT.
// It handles:
//   - Forwarding accepted property writes to device set topics
//   - Dispatching action inputs to device request topics
//   - Applying device-reported state topics as external updates
//   - Mirroring property, action, and event notifications to the broker
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	client MQTTClient
	topics mqtt.Topics
	qos    byte

	// things indexes the container by thing ID for state routing.
	// The container is fixed at startup, so the index never changes.
	things map[string]*thing.Thing

	// notifyCh carries notifications from the thing layer to the
	// mirror loop. Sends never block.
	notifyCh chan thing.Notification

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge for every thing in the container.
//
// The bridge is passive until Start is called: forwarders and action
// work built before Start publish as soon as they run, but no state
// subscriptions or mirroring exist yet.
func New(client MQTTClient, things thing.Container, cfg config.MQTTConfig) *Bridge {
	index := make(map[string]*thing.Thing)
	for _, t := range things.Things() {
		index[t.ID()] = t
	}

	return &Bridge{
		client:   client,
		topics:   mqtt.Topics{Prefix: cfg.TopicPrefix},
		qos:      byte(cfg.QoS),
		things:   index,
		notifyCh: make(chan thing.Notification, notifyBuffer),
		done:     make(chan struct{}),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger used for bridge diagnostics.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// Start subscribes to device state topics, registers the bridge as a
// subscriber on every managed thing, and launches the mirror loop.
//
// Event kinds registered after Start are not mirrored; build things
// completely before starting the bridge.
//
// Returns:
//   - error: If the state subscription fails
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.AllPropertyStates(), b.qos, b.handleState); err != nil {
		return fmt.Errorf("subscribing to property states: %w", err)
	}

	for _, t := range b.things {
		t.Subscribe(b)
		for _, name := range t.AvailableEvents() {
			t.SubscribeToEvent(name, b)
		}
	}

	b.wg.Add(1)
	go b.mirrorLoop()

	b.getLogger().Debug("bridge started", "things", len(b.things))
	return nil
}

// Stop detaches the bridge from its things and drains the mirror queue.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		for _, t := range b.things {
			t.Unsubscribe(b)
		}
		close(b.done)
		b.wg.Wait()
	})
}

// Forwarder returns a property forwarder that publishes accepted
// writes to the thing's set topic. The write is JSON-encoded exactly
// as the property value.
//
// A publish failure aborts the write: the property keeps its previous
// value and no notification fires.
func (b *Bridge) Forwarder(thingID, property string) thing.Forwarder {
	topic := b.topics.PropertySet(thingID, property)
	return func(value any) error {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding %s write: %w", property, err)
		}
		if err := b.client.Publish(topic, payload, b.qos, false); err != nil {
			return fmt.Errorf("forwarding %s write: %w", property, err)
		}
		return nil
	}
}

// ActionWork returns an action body that publishes the validated input
// to the thing's action request topic. The action completes as soon as
// the request is on the wire; progress beyond that is the device's
// responsibility.
func (b *Bridge) ActionWork(thingID, action string) thing.ActionWork {
	topic := b.topics.ActionRequest(thingID, action)
	return func(ctx context.Context, _ *thing.Thing, input map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", action, err)
		}
		if err := b.client.Publish(topic, payload, b.qos, false); err != nil {
			return fmt.Errorf("dispatching %s request: %w", action, err)
		}
		return nil
	}
}

// handleState routes a device-reported value to its property.
//
// The value is applied as an external update: the forwarder is skipped
// and unchanged values are deduplicated, so retained replays and echo
// reports settle without further traffic.
func (b *Bridge) handleState(topic string, payload []byte) error {
	thingID, property, ok := b.topics.ParsePropertyState(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnroutableTopic, topic)
	}

	t, ok := b.things[thingID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownThing, thingID)
	}

	p := t.FindProperty(property)
	if p == nil {
		return fmt.Errorf("%w: %s on %s", ErrUnknownProperty, property, thingID)
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return fmt.Errorf("decoding state for %s/%s: %w", thingID, property, err)
	}

	p.ExternalUpdate(value)

	b.getLogger().Debug("device state applied",
		"thing", thingID,
		"property", property,
	)
	return nil
}

// Notify queues a notification for mirroring. Never blocks; when the
// queue is full the notification is dropped.
//
// Implements thing.Subscriber.
func (b *Bridge) Notify(n thing.Notification) {
	select {
	case b.notifyCh <- n:
	default:
		b.getLogger().Warn("mirror queue full, notification dropped",
			"thing", n.ThingID,
			"kind", string(n.Kind),
		)
	}
}

// mirrorLoop drains the notification queue until Stop. Queued
// notifications are flushed before returning.
func (b *Bridge) mirrorLoop() {
	defer b.wg.Done()

	for {
		select {
		case n := <-b.notifyCh:
			b.mirror(n)
		case <-b.done:
			for {
				select {
				case n := <-b.notifyCh:
					b.mirror(n)
				default:
					return
				}
			}
		}
	}
}

// mirror publishes one notification to its per-kind topic. Property
// mirrors are retained so late subscribers see current values; action
// and event traffic is transient.
func (b *Bridge) mirror(n thing.Notification) {
	for name, payload := range n.Data {
		var topic string
		var retained bool

		switch n.Kind {
		case thing.NotificationProperty:
			topic = b.topics.Property(n.ThingID, name)
			retained = true
		case thing.NotificationAction:
			topic = b.topics.Action(n.ThingID, name)
		case thing.NotificationEvent:
			topic = b.topics.Event(n.ThingID, name)
		default:
			continue
		}

		data, err := json.Marshal(payload)
		if err != nil {
			b.getLogger().Error("encoding notification mirror",
				"topic", topic,
				"error", err,
			)
			continue
		}

		if err := b.client.Publish(topic, data, b.qos, retained); err != nil {
			b.getLogger().Warn("publishing notification mirror",
				"topic", topic,
				"error", err,
			)
		}
	}
}
