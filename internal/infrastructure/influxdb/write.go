package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePropertyMetric records one numeric property value.
//
// This is the primary telemetry path: every accepted numeric property
// update becomes a point in the property_values measurement, tagged by
// thing and property for low-cardinality indexing.
//
// The write is non-blocking; points are batched and sent asynchronously.
//
// Example:
//
//	client.WritePropertyMetric("urn:dev:ops:thermostat-1", "temperature", 21.5)
func (c *Client) WritePropertyMetric(thingID, property string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"property_values",
		map[string]string{
			"thing_id": thingID,
			"property": property,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEventMetric records one numeric event payload.
//
// Events carrying numeric data (an overheat temperature, a power
// spike) land in the event_values measurement, tagged by thing and
// event kind.
func (c *Client) WriteEventMetric(thingID, event string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"event_values",
		map[string]string{
			"thing_id": thingID,
			"event":    event,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("gateway_stats",
//	    map[string]string{"host": "gateway-01"},
//	    map[string]interface{}{"things": 4, "ws_clients": 12})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
