package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/WebThingsIO/webthing-go/internal/infrastructure/config"
)

// Client is the gateway's session with the MQTT broker. It carries the
// topic builders for the configured prefix, remembers every subscription
// so routes survive broker reconnects, and announces gateway presence on
// the status topic.
//
// All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	online atomic.Bool

	// routes maps subscribed topics to their handler and QoS so the
	// session can be rebuilt after a connection loss.
	routes  map[string]route
	routeMu sync.RWMutex

	onUp   func()
	onDown func(err error)
	cbMu   sync.RWMutex

	logger Logger
	logMu  sync.RWMutex
}

// route remembers how a topic was subscribed.
type route struct {
	qos     byte
	handler MessageHandler
}

// Logger is the subset of a structured logger the client reports through.
// The default discards everything; see SetLogger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is set.
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Connect dials the broker described by cfg and returns a ready client.
//
// The connection carries a retained Last Will on the gateway status topic
// so device-side subscribers learn about unclean drops; a matching
// "online" announcement goes out on every successful (re)connect. Paho
// handles the reconnecting itself, and the client replays its tracked
// routes each time the session comes back.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
		routes: make(map[string]route),
		logger: noopLogger{},
	}

	opts := pahoOptions(cfg)
	opts.SetWill(c.topics.GatewayStatus(),
		presencePayload(cfg.Broker.ClientID, statusOffline, reasonUnexpected), 1, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.brokerUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.brokerDown(err) })

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no broker response within %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs on paho's goroutine and may not have
	// fired yet. Mark the session up here so IsConnected holds as soon as
	// Connect returns; the handler still does the announcement and
	// re-subscribe work.
	c.online.Store(true)

	return c, nil
}

// TopicSet returns the topic builders bound to the configured prefix.
func (c *Client) TopicSet() Topics {
	return c.topics
}

// Close announces a graceful shutdown and disconnects. The explicit
// offline message replaces the Last Will, which the broker only fires on
// unclean drops.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.paho.Publish(c.topics.GatewayStatus(), byte(c.cfg.QoS), true,
			presencePayload(c.cfg.Broker.ClientID, statusOffline, reasonShutdown))
		token.WaitTimeout(tokenTimeout)
	}

	c.paho.Disconnect(disconnectQuiesceMs)
	c.online.Store(false)

	return nil
}

// HealthCheck reports whether the broker session is usable. A down
// session is not fatal; paho keeps reconnecting in the background.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the current session state.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.paho.IsConnected()
}

// SetOnConnect registers a callback invoked on the initial connect and on
// every reconnect, after subscriptions have been replayed.
func (c *Client) SetOnConnect(callback func()) {
	c.cbMu.Lock()
	c.onUp = callback
	c.cbMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the session drops.
// The error describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.cbMu.Lock()
	c.onDown = callback
	c.cbMu.Unlock()
}

// SetLogger sets the logger used for handler failures and re-subscribe
// problems. Passing nil restores the silent default.
func (c *Client) SetLogger(logger Logger) {
	c.logMu.Lock()
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
	c.logMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// brokerUp runs on every successful connect, including paho-driven
// reconnects. Routes are replayed before presence is announced so no
// retained state beats the handlers into place.
func (c *Client) brokerUp() {
	c.online.Store(true)

	c.resubscribe()
	c.announce()

	c.cbMu.RLock()
	cb := c.onUp
	c.cbMu.RUnlock()
	if cb != nil {
		cb()
	}
}

func (c *Client) brokerDown(err error) {
	c.online.Store(false)

	c.cbMu.RLock()
	cb := c.onDown
	c.cbMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// resubscribe replays every tracked route against the fresh session.
// Failures are logged rather than returned; the routes get another chance
// on the next reconnect.
func (c *Client) resubscribe() {
	c.routeMu.RLock()
	defer c.routeMu.RUnlock()

	for topic, r := range c.routes {
		topic := topic
		token := c.paho.Subscribe(topic, r.qos, c.dispatch(r.handler))
		go func() {
			if token.WaitTimeout(tokenTimeout) && token.Error() != nil {
				c.getLogger().Warn("re-subscribe failed", "topic", topic, "error", token.Error())
			}
		}()
	}
}

// announce publishes the gateway's online presence, retained so late
// subscribers see the latest state.
func (c *Client) announce() {
	c.paho.Publish(c.topics.GatewayStatus(), byte(c.cfg.QoS), true,
		presencePayload(c.cfg.Broker.ClientID, statusOnline, ""))
}

// waitToken blocks until the broker acks an operation, translating
// timeouts and token errors into sentinel-wrapped errors.
func waitToken(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("%w: no ack within %v", sentinel, tokenTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
