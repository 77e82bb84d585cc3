package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogSessionTransition logs a session state change
func LogSessionTransition(l Logger, username, from, to string) {
	l.WithFields(map[string]interface{}{
		"login": username,
		"from":  from,
		"to":    to,
	}).Info("Session state changed")
}

// LogNavigation logs a completed or failed page load
func LogNavigation(l Logger, url string, took time.Duration, err error) {
	fields := map[string]interface{}{
		"url":         url,
		"duration_ms": took.Milliseconds(),
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Navigation failed", fields)
		return
	}
	l.DebugWithFields("Navigation completed", fields)
}

// LogExtraction is the side-channel record of one post: account, post
// reference and error kind when extraction failed.
func LogExtraction(l Logger, account, shortcode, strategy string, errorKind string, err error) {
	fields := map[string]interface{}{
		"account":   account,
		"shortcode": shortcode,
	}
	if strategy != "" {
		fields["strategy"] = strategy
	}
	if err != nil {
		fields["error_kind"] = errorKind
		l.WithError(err).ErrorWithFields("Extraction failed", fields)
		return
	}
	l.InfoWithFields("Post extracted", fields)
}

// LogAccountProgress logs progress through one account's posts
func LogAccountProgress(l Logger, account string, done, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}

	l.WithFields(map[string]interface{}{
		"account":    account,
		"done":       done,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Account progress")
}

// LogRateLimitSuspected logs repeated navigation failures
func LogRateLimitSuspected(l Logger, failures int, window time.Duration, policy string) {
	l.WithFields(map[string]interface{}{
		"failures": failures,
		"window":   window,
		"policy":   policy,
		"action":   "rate_limit_suspected",
	}).Warn("Repeated navigation failures, rate limiting suspected")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, cfg map[string]interface{}) {
	l = l.WithField("component", component)
	if len(cfg) > 0 {
		l = l.WithFields(cfg)
	}
	l.Info("Component started")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	z := zerolog.Nop()
	return &z
}
