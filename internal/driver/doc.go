// Package driver runs in-process value sources.
//
// A Sampler polls a caller-supplied Sample function and feeds readings
// into a property's value cell as external updates. It is the local
// counterpart to the MQTT bridge: the bridge applies state reported
// over the broker, the sampler applies state read directly from
// hardware or an API in this process.
//
// Usage:
//
//	cell := thing.NewValue(0.0, nil)
//	s := driver.NewSampler(cell, readHumidity, 3*time.Second)
//	s.Start(ctx)
//	defer s.Stop()
package driver
