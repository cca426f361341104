package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler receives messages delivered on a subscribed topic. The
// topic argument carries the concrete topic, with any wildcards from the
// subscription filled in. Handlers run on paho's delivery goroutines and
// should hand heavy work off rather than block. A returned error is
// logged; the message still counts as consumed.
type MessageHandler func(topic string, payload []byte) error

// Subscribe registers handler for topic, which may use MQTT wildcards
// ("+" for one level, "#" for everything below). The route is remembered
// and replayed automatically when the broker session is rebuilt after a
// connection loss.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.routeMu.Lock()
	c.routes[topic] = route{qos: qos, handler: handler}
	c.routeMu.Unlock()

	err := waitToken(c.paho.Subscribe(topic, qos, c.dispatch(handler)), ErrSubscribeFailed)
	if err != nil {
		// Keep the route table honest. A failed subscribe must not be
		// replayed on reconnect.
		c.routeMu.Lock()
		delete(c.routes, topic)
		c.routeMu.Unlock()
	}
	return err
}

// Unsubscribe drops the route for topic and tells the broker to stop
// delivery. Messages already in flight may still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.routeMu.Lock()
	delete(c.routes, topic)
	c.routeMu.Unlock()

	return waitToken(c.paho.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// SubscriptionCount reports how many routes the client is tracking.
func (c *Client) SubscriptionCount() int {
	c.routeMu.RLock()
	defer c.routeMu.RUnlock()
	return len(c.routes)
}

// HasSubscription reports whether topic has a tracked route. Exact string
// match only; wildcard overlap is not evaluated.
func (c *Client) HasSubscription(topic string) bool {
	c.routeMu.RLock()
	defer c.routeMu.RUnlock()
	_, ok := c.routes[topic]
	return ok
}

// dispatch adapts a MessageHandler to paho's callback shape, recovering
// panics so a bad payload cannot take down the delivery goroutine.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.getLogger().Error("message handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.getLogger().Warn("message handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
