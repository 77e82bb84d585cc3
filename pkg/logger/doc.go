// Package logger provides the structured logging interface used across
// igreels.
//
// It wraps zerolog with a small interface so components can receive a
// Logger instead of reaching for a global:
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("account", "nasa").Info("Discovery started")
//
// File output is rotated with lumberjack using the MaxSize, MaxBackups,
// MaxAge and Compress settings of config.LoggingConfig. Domain helpers
// such as LogExtraction produce the per-post side-channel record
// (account, shortcode, error_kind). TestLogger captures messages for
// assertions in tests.
package logger
