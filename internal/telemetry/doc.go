// Package telemetry streams numeric thing activity to InfluxDB.
//
// The Writer subscribes to every managed thing and forwards numeric
// property updates and numeric event payloads as time-series points.
// It is a thin dispatch layer: batching, flushing, and error handling
// live in the influxdb infrastructure package.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.Telemetry)
//	if err != nil {
//	    return err
//	}
//	w := telemetry.NewWriter(client, container)
//	w.Start()
//	defer w.Stop()
package telemetry
