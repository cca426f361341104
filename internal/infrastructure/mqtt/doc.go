// Package mqtt provides MQTT client connectivity for the webthing gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The gateway uses MQTT as the message bus between exposed things and
// the physical devices behind them. Property writes accepted over HTTP
// or WebSocket are forwarded to device-side set topics, and devices
// report observed values back on state topics.
//
//	Web clients ↔ Gateway ↔ MQTT Broker ↔ Devices
//
// # Topic Scheme
//
// All topics live under a configurable prefix (default "webthings"):
//
//	{prefix}/things/{thingID}/properties/{name}        retained mirror of the current value
//	{prefix}/things/{thingID}/properties/{name}/set    accepted writes, gateway → device
//	{prefix}/things/{thingID}/properties/{name}/state  observed values, device → gateway
//	{prefix}/things/{thingID}/actions/{name}           action status updates
//	{prefix}/things/{thingID}/actions/{name}/request   action inputs, gateway → device
//	{prefix}/things/{thingID}/events/{name}            emitted events
//	{prefix}/gateway/status                            gateway online/offline (LWT)
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
//
//	// Subscribe to all device-reported property values
//	err = client.Subscribe(topics.AllPropertyStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Forward a property write to the device side
//	topic := topics.PropertySet("urn:dev:ops:lamp-1", "level")
//	client.Publish(topic, []byte(`75`), 1, false)
package mqtt
