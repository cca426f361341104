// Package influxdb provides InfluxDB connectivity for property
// telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched point writing, and health monitoring. The
// telemetry package feeds it numeric property updates and event
// payloads; everything else about the time-series pipeline (batching,
// retries, flushing) lives here.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.Telemetry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePropertyMetric("urn:dev:ops:lamp-1", "level", 75)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered to the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
