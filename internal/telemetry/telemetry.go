package telemetry

import (
	"sync"

	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// MetricsClient is the interface for time-series writes.
// Satisfied by *influxdb.Client.
type MetricsClient interface {
	// WritePropertyMetric records one numeric property value.
	WritePropertyMetric(thingID, property string, value float64)

	// WriteEventMetric records one numeric event payload.
	WriteEventMetric(thingID, event string, value float64)
}

// Writer streams numeric thing activity to the time-series store.
//
// It subscribes to every thing in the container and forwards numeric
// property updates and numeric event payloads. Non-numeric values are
// skipped; booleans, strings, and structured values belong to the
// history store, not the metrics pipeline.
//
// Notify hands points straight to the client, whose writes are
// non-blocking and batched, so no queue is needed here.
type Writer struct {
	client   MetricsClient
	things   []*thing.Thing
	stopOnce sync.Once
}

// NewWriter creates a telemetry writer for every thing in the container.
func NewWriter(client MetricsClient, things thing.Container) *Writer {
	return &Writer{
		client: client,
		things: things.Things(),
	}
}

// Start registers the writer as a subscriber on every managed thing.
// Event kinds registered after Start are not streamed.
func (w *Writer) Start() {
	for _, t := range w.things {
		t.Subscribe(w)
		for _, name := range t.AvailableEvents() {
			t.SubscribeToEvent(name, w)
		}
	}
}

// Stop detaches the writer from its things. Safe to call multiple times.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		for _, t := range w.things {
			t.Unsubscribe(w)
		}
	})
}

// Notify forwards numeric payloads to the metrics client.
//
// Implements thing.Subscriber.
func (w *Writer) Notify(n thing.Notification) {
	switch n.Kind {
	case thing.NotificationProperty:
		for name, value := range n.Data {
			if v, ok := numeric(value); ok {
				w.client.WritePropertyMetric(n.ThingID, name, v)
			}
		}
	case thing.NotificationEvent:
		for name, raw := range n.Data {
			desc, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := numeric(desc["data"]); ok {
				w.client.WriteEventMetric(n.ThingID, name, v)
			}
		}
	case thing.NotificationAction:
		// Lifecycle transitions carry no numeric series.
	}
}

// numeric converts a property or event value to float64. JSON decoding
// yields float64, but values set in process may be any Go number.
func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
