package mqtt

import "errors"

// Sentinel errors for broker operations. Callers match them with
// errors.Is; the operations wrap them with broker-level detail.
var (
	// ErrNotConnected means the broker session is down. Usually
	// transient, since paho reconnects in the background.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed covers failures of the initial Connect dial.
	ErrConnectionFailed = errors.New("mqtt: connect failed")

	// ErrPublishFailed covers broker rejections, ack timeouts and
	// oversized payloads on publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed covers subscribe rejections and nil handlers.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed covers unsubscribe rejections and ack timeouts.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS levels outside what MQTT defines.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic rejects empty topic strings.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
