package mqtt

import "fmt"

// maxPayloadSize caps a single publish at 1MB, in line with common
// broker defaults.
const maxPayloadSize = 1 << 20

// validate rejects empty topics and QoS levels MQTT does not define.
func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// Publish sends payload to topic and waits for the broker to ack it.
//
// QoS picks the delivery contract: 0 is fire-and-forget, 1 at-least-once,
// 2 exactly-once. Retained should be set only on current-value topics,
// like property mirrors and gateway status, where a late subscriber wants
// the last message immediately. Forwarded writes, action requests and
// events go out unretained so they are seen once, by whoever is there.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload exceeds %d limit", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return waitToken(c.paho.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured default
// QoS. Meant for current-value mirrors.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
