package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/amberhub/amber-core/internal/infrastructure/config"
)

// serviceName tags every log line so hub output is filterable when
// aggregated alongside bridges and broker logs.
const serviceName = "amber-core"

// Logger is the hub's structured logger, a thin wrap over slog that
// carries the service and version attrs on every record. Safe for
// concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the loaded configuration.
//
// Format is "json" (the default, for collectors) or "text" (readable
// during development); output is "stdout" unless "stderr" is asked
// for; unknown levels fall back to info rather than failing startup.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

func newHandler(cfg config.LoggingConfig) slog.Handler {
	var out io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// parseLevel maps a config level string to slog's levels. Unknown
// values mean info.
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

// With returns a child logger with extra default attributes, e.g.
//
//	mqttLog := log.With("component", "mqtt")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before the configuration file
// has been read: JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
