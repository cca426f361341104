// webthingd - Web of Things gateway daemon
//
// webthingd exposes things declared in a YAML file over the Web Thing
// REST and WebSocket protocols. Optional subsystems wire the exposed
// things to the outside world:
//   - MQTT bridge: device state in, commands and mirrors out
//   - History store: SQLite log of property, action, and event activity
//   - Telemetry: numeric property values streamed to InfluxDB
//   - mDNS: LAN discovery as _webthing._tcp
//
// Things with custom behaviour (Go forwarders, action bodies, samplers)
// are built programmatically instead; see examples/.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/WebThingsIO/webthing-go/migrations"

	"github.com/WebThingsIO/webthing-go/internal/api"
	"github.com/WebThingsIO/webthing-go/internal/bridge"
	"github.com/WebThingsIO/webthing-go/internal/history"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/config"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/database"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/influxdb"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/logging"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/mqtt"
	"github.com/WebThingsIO/webthing-go/internal/telemetry"
	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/webthingd.yaml"

// historyBusyTimeout is the SQLite lock wait in seconds. The store has
// one writer (the recorder) plus read queries, so a short wait is enough.
const historyBusyTimeout = 5

func main() {
	configFlag := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context, configFlag string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting webthingd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := resolveConfigPath(configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if len(cfg.Things) == 0 {
		return errors.New("no things declared in configuration")
	}

	// Create the exposed things and their container. Properties and
	// actions are attached after the bridge exists so declared
	// forwarders can publish through it.
	things := make([]*thing.Thing, len(cfg.Things))
	for i, tc := range cfg.Things {
		things[i] = thing.NewThing(tc.ID, tc.Title, tc.Types, tc.Description)
		things[i].SetLogger(log)
	}
	var container thing.Container
	if len(things) == 1 {
		container = thing.NewSingleThing(things[0])
	} else {
		container = thing.NewMultipleThings("webthingd", things...)
	}

	// Connect to MQTT and create the bridge (optional)
	var mqttClient *mqtt.Client
	var mqttBridge *bridge.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		mqttBridge = bridge.New(mqttClient, container, cfg.MQTT)
		mqttBridge.SetLogger(log)
	} else {
		log.Info("MQTT bridge disabled")
	}

	// Populate the declared properties, actions, and events
	for i, tc := range cfg.Things {
		if buildErr := buildThing(things[i], tc, mqttBridge); buildErr != nil {
			return fmt.Errorf("building thing %s: %w", tc.ID, buildErr)
		}
	}
	log.Info("things built", "count", len(things))

	// Start the bridge after the things are fully populated so its
	// event subscriptions see every declared kind
	if mqttBridge != nil {
		if startErr := mqttBridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			mqttBridge.Stop()
		}()
		log.Info("MQTT bridge started", "topic_prefix", cfg.MQTT.TopicPrefix)
	}

	// Open the history store (optional)
	var db *database.DB
	var repo history.Repository
	if cfg.History.Enabled {
		db, err = database.Open(database.Config{
			DSN:         cfg.History.DSN,
			BusyTimeout: historyBusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("history store ready", "dsn", cfg.History.DSN, "in_memory", db.InMemory())

		repo = history.NewSQLiteRepository(db.DB)
		recorder := history.NewRecorder(repo, container, cfg.GetRetention())
		recorder.SetLogger(log)
		recorder.Start()
		defer func() {
			log.Info("stopping history recorder")
			recorder.Stop()
		}()
	} else {
		log.Info("history store disabled")
	}

	// Connect to InfluxDB and start the telemetry writer (optional)
	var influxClient *influxdb.Client
	if cfg.Telemetry.Enabled {
		influxClient, err = influxdb.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		writer := telemetry.NewWriter(influxClient, container)
		writer.Start()
		defer func() {
			log.Info("stopping telemetry writer")
			writer.Stop()
		}()
	} else {
		log.Info("telemetry disabled")
	}

	// Start the HTTP/WebSocket server
	server, err := api.New(api.Deps{
		Config:  cfg.Server,
		MDNS:    cfg.MDNS,
		Logger:  log,
		Things:  container,
		History: repo,
		DB:      db,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting server: %w", startErr)
	}
	defer func() {
		log.Info("stopping server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing server", "error", closeErr)
		}
	}()
	log.Info("server listening",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"things", len(things),
		"tls", cfg.Server.TLS.Enabled,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Server (stops accepting, disconnects WebSocket clients)
	// 2. Telemetry writer, then InfluxDB (flushes batched points)
	// 3. History recorder, then database
	// 4. MQTT bridge, then MQTT client

	log.Info("webthingd stopped")
	return nil
}

// resolveConfigPath returns the configuration file path. The --config
// flag wins, then the WEBTHING_CONFIG environment variable, then the
// default.
func resolveConfigPath(configFlag string) string {
	if configFlag != "" {
		return configFlag
	}
	if path := os.Getenv("WEBTHING_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildThing attaches the declared properties, actions, and events to
// a thing. A nil bridge leaves forwarding off: writes mutate only the
// in-process value and actions complete as soon as they start.
func buildThing(t *thing.Thing, tc config.ThingConfig, b *bridge.Bridge) error {
	for _, pc := range tc.Properties {
		var fwd thing.Forwarder
		if b != nil && pc.Forward {
			fwd = b.Forwarder(tc.ID, pc.Name)
		}

		p, err := thing.NewProperty(pc.Name, thing.NewValue(pc.Initial, fwd), &thing.Metadata{
			AtType:      pc.AtType,
			Title:       pc.Title,
			Type:        pc.Type,
			Description: pc.Description,
			Unit:        pc.Unit,
			ReadOnly:    pc.ReadOnly,
			Minimum:     pc.Minimum,
			Maximum:     pc.Maximum,
			Enum:        pc.Enum,
		})
		if err != nil {
			return fmt.Errorf("property %s: %w", pc.Name, err)
		}
		t.AddProperty(p)
	}

	for _, ac := range tc.Actions {
		meta := make(map[string]any)
		if ac.Title != "" {
			meta["title"] = ac.Title
		}
		if ac.Description != "" {
			meta["description"] = ac.Description
		}
		if ac.Input != nil {
			meta["input"] = ac.Input
		}

		var work thing.ActionWork
		if b != nil {
			work = b.ActionWork(tc.ID, ac.Name)
		}
		if err := t.AddAvailableAction(ac.Name, meta, work); err != nil {
			return fmt.Errorf("action %s: %w", ac.Name, err)
		}
	}

	for _, ec := range tc.Events {
		meta := make(map[string]any)
		if ec.Description != "" {
			meta["description"] = ec.Description
		}
		if ec.Type != "" {
			meta["type"] = ec.Type
		}
		if ec.Unit != "" {
			meta["unit"] = ec.Unit
		}
		t.AddAvailableEvent(ec.Name, meta)
	}

	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// Disabled subsystems pass their checks by being absent.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
