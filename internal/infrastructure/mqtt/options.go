package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/WebThingsIO/webthing-go/internal/infrastructure/config"
)

const (
	// connectTimeout bounds the initial broker handshake in Connect.
	connectTimeout = 10 * time.Second

	// tokenTimeout bounds waits on publish, subscribe and unsubscribe acks.
	tokenTimeout = 5 * time.Second

	// disconnectQuiesceMs gives in-flight messages a chance to drain
	// before Close drops the network connection.
	disconnectQuiesceMs = 1000

	// keepAlive is the PINGREQ interval. The broker declares the session
	// dead after 1.5x this and fires the Last Will.
	keepAlive = 60 * time.Second

	// maxQoS is the highest QoS level MQTT defines.
	maxQoS = 2
)

// pahoOptions translates gateway MQTT config into paho client options:
// broker URL and credentials, a clean session, and automatic reconnection
// backing off between the configured delays. TLS 1.2 is the floor when
// the broker connection is encrypted.
func pahoOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}
