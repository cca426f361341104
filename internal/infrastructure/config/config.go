package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// validPropertyTypes are the JSON type tags a declarative property may
// carry.
var validPropertyTypes = map[string]bool{
	"null":    true,
	"boolean": true,
	"object":  true,
	"array":   true,
	"number":  true,
	"integer": true,
	"string":  true,
}

// Config is the root configuration structure for the webthing server.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	MDNS      MDNSConfig      `yaml:"mdns"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Things    []ThingConfig   `yaml:"things"`
}

// ServerConfig contains HTTP/WebSocket server settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	BasePath string              `yaml:"base_path"`
	TLS      TLSConfig           `yaml:"tls"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`

	// DisableHostValidation turns off Host-header checking. Leave it
	// on outside development: DNS-rebinding attacks rely on the
	// server answering for foreign hosts.
	DisableHostValidation bool `yaml:"disable_host_validation"`

	// AdditionalHosts are extra Host-header values to accept besides
	// localhost and the mDNS name (reverse proxies, LAN addresses).
	AdditionalHosts []string `yaml:"additional_hosts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MDNSConfig contains multicast DNS service discovery settings.
type MDNSConfig struct {
	Enabled bool `yaml:"enabled"`

	// Instance overrides the advertised instance name. Defaults to
	// the thing container's name.
	Instance string `yaml:"instance"`
}

// MQTTConfig contains MQTT bridge settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	TopicPrefix string              `yaml:"topic_prefix"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// HistoryConfig contains the state-history store settings.
//
// The default DSN keeps history in a shared in-memory SQLite database,
// so recorded state lives exactly as long as the process. Point it at
// a file to keep history across restarts.
type HistoryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DSN            string `yaml:"dsn"`
	RetentionHours int    `yaml:"retention_hours"`
}

// TelemetryConfig contains InfluxDB property-telemetry settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ThingConfig declares one thing the gateway daemon exposes.
type ThingConfig struct {
	ID          string           `yaml:"id"`
	Title       string           `yaml:"title"`
	Types       []string         `yaml:"types"`
	Description string           `yaml:"description"`
	Properties  []PropertyConfig `yaml:"properties"`
	Actions     []ActionConfig   `yaml:"actions"`
	Events      []EventConfig    `yaml:"events"`
}

// PropertyConfig declares one property of a configured thing.
type PropertyConfig struct {
	Name        string   `yaml:"name"`
	AtType      string   `yaml:"at_type"`
	Title       string   `yaml:"title"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Unit        string   `yaml:"unit"`
	ReadOnly    bool     `yaml:"read_only"`
	Minimum     *float64 `yaml:"minimum"`
	Maximum     *float64 `yaml:"maximum"`
	Enum        []any    `yaml:"enum"`
	Initial     any      `yaml:"initial"`

	// Forward publishes accepted writes to the MQTT set topic so the
	// device side of the bridge can apply them. Requires the bridge.
	Forward bool `yaml:"forward"`
}

// ActionConfig declares one action kind of a configured thing. Input
// is a JSON Schema document validated against each request. Configured
// actions publish their input to the MQTT action topic when the bridge
// runs; without the bridge they complete immediately.
type ActionConfig struct {
	Name        string         `yaml:"name"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Input       map[string]any `yaml:"input"`
}

// EventConfig declares one event kind of a configured thing.
type EventConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Unit        string `yaml:"unit"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WEBTHING_SECTION_KEY
// For example: WEBTHING_SERVER_PORT, WEBTHING_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8888,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MDNS: MDNSConfig{
			Enabled: true,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "webthingd",
			},
			TopicPrefix: "webthings",
			QoS:         1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		History: HistoryConfig{
			Enabled: true,
			DSN:     "file:webthing-history?mode=memory&cache=shared",
		},
		Telemetry: TelemetryConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern:
// WEBTHING_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("WEBTHING_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("WEBTHING_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("WEBTHING_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WEBTHING_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WEBTHING_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// History
	if v := os.Getenv("WEBTHING_HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}

	// Telemetry
	if v := os.Getenv("WEBTHING_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.BasePath != "" {
		if !strings.HasPrefix(c.Server.BasePath, "/") {
			errs = append(errs, "server.base_path must start with /")
		}
		if strings.HasSuffix(c.Server.BasePath, "/") {
			errs = append(errs, "server.base_path must not end with /")
		}
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			errs = append(errs, "server.tls requires cert_file and key_file")
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when the bridge is enabled")
	}

	// History validation
	if c.History.Enabled && c.History.DSN == "" {
		errs = append(errs, "history.dsn is required when history is enabled")
	}
	if c.History.RetentionHours < 0 {
		errs = append(errs, "history.retention_hours must not be negative")
	}

	// Telemetry validation
	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry is enabled")
		}
		if c.Telemetry.Token == "" {
			errs = append(errs, "telemetry.token is required when telemetry is enabled (set WEBTHING_TELEMETRY_TOKEN)")
		}
		if c.Telemetry.Org == "" || c.Telemetry.Bucket == "" {
			errs = append(errs, "telemetry.org and telemetry.bucket are required when telemetry is enabled")
		}
	}

	// Thing validation
	for i, tc := range c.Things {
		where := fmt.Sprintf("things[%d]", i)
		if tc.ID == "" {
			errs = append(errs, where+".id is required")
		}
		if tc.Title == "" {
			errs = append(errs, where+".title is required")
		}

		seen := make(map[string]bool, len(tc.Properties))
		for _, pc := range tc.Properties {
			if pc.Name == "" {
				errs = append(errs, where+" has a property without a name")
				continue
			}
			if seen[pc.Name] {
				errs = append(errs, fmt.Sprintf("%s.properties.%s is declared twice", where, pc.Name))
			}
			seen[pc.Name] = true
			if pc.Type != "" && !validPropertyTypes[pc.Type] {
				errs = append(errs, fmt.Sprintf("%s.properties.%s has invalid type %q", where, pc.Name, pc.Type))
			}
			if pc.Forward && !c.MQTT.Enabled {
				errs = append(errs, fmt.Sprintf("%s.properties.%s forwards to MQTT but the bridge is disabled", where, pc.Name))
			}
		}

		for _, ac := range tc.Actions {
			if ac.Name == "" {
				errs = append(errs, where+" has an action without a name")
			}
		}
		for _, ec := range tc.Events {
			if ec.Name == "" {
				errs = append(errs, where+" has an event without a name")
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// GetFlushInterval returns the telemetry flush interval as a Duration.
func (c *Config) GetFlushInterval() time.Duration {
	return time.Duration(c.Telemetry.FlushInterval) * time.Second
}

// GetRetention returns the history retention window as a Duration,
// zero when history is kept for the process lifetime.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.History.RetentionHours) * time.Hour
}
