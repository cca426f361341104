// Package logging provides structured logging for the webthing server.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in the server's YAML
// config:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting server", "port", 8888)
//	logger.Error("failed to connect", "error", err)
//
// The *Logger satisfies the thing package's Logger interface, so the
// same instance is injected into things, the MQTT bridge, and the
// history recorder.
//
// # Security
//
// Never log secrets, tokens, passwords, or API keys.
package logging
