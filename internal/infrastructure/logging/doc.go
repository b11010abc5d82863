// Package logging provides structured logging for NEA Smart Core.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filtering.
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	sessionLog := logger.Component("session")
//	sessionLog.Info("connected", "client_id", id)
//
// Access tokens, refresh tokens and passwords must never be logged in
// full. Use Redact when a token needs to be identifiable in a log line.
package logging
