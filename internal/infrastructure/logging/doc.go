// Package logging provides structured logging for the Hue bridge adapter.
//
// This package wraps Go's standard log/slog package so every component
// logs through the same handler chain with the same default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - systemd journal output with native priorities
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, journal
//
// When output is "journal" but no journal socket is present (containers,
// development shells) the logger falls back to stderr.
//
// # Security
//
// Never log the Hue application key or MQTT credentials.
package logging
