// Package logging is a thin wrapper around log/slog that gives every
// part of the hub the same structured logger.
//
// Each entry carries the service name and build version as default
// attributes. Output destination (stdout or stderr), format (json or
// text) and minimum level come from the logging section of config.yaml:
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stdout"
//
// JSON is intended for production where a collector parses the stream;
// text is for reading during development. Loggers are safe for
// concurrent use.
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("starting service", "port", 8123)
//	logger.Error("failed to connect", "error", err)
package logging
