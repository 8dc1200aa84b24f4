package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/config"
)

// ServiceName is attached to every log entry and used as the journal
// SYSLOG_IDENTIFIER.
const ServiceName = "graylogic-hue"

// Logger wraps slog.Logger with adapter-specific defaults.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	switch strings.ToLower(cfg.Output) {
	case "journal":
		if IsJournalAvailable() {
			handler = NewJournalHandler(level)
		} else {
			handler = newStreamHandler(cfg.Format, os.Stderr, level)
		}
	case "stderr":
		handler = newStreamHandler(cfg.Format, os.Stderr, level)
	default:
		handler = newStreamHandler(cfg.Format, os.Stdout, level)
	}

	return &Logger{
		Logger: slog.New(withDefaults(handler, version)),
	}
}

// newStreamHandler builds a JSON or text handler writing to w.
func newStreamHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func withDefaults(h slog.Handler, version string) slog.Handler {
	return h.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	hueLogger := logger.With("component", "hue")
//	hueLogger.Info("bridge reachable") // Includes component=hue
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default creates a default logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
