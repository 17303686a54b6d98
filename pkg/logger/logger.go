// Package logger builds the structured loggers shared across Ignite's
// subsystems. Every internal package takes a *zap.SugaredLogger rather than
// constructing its own, so a single call here fixes the format and level
// for the whole engine.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a production-configured, service-scoped SugaredLogger.
// The returned logger is safe for concurrent use and should be shared
// (not recreated per operation) by the caller.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Falling back to a no-op logger keeps callers from having to
		// handle a logger construction error on every startup path.
		log = zap.NewNop()
	}

	return log.Sugar().Named(service)
}

// NewDevelopment builds a human-readable, more verbose logger intended
// for local development and tests.
func NewDevelopment(service string) *zap.SugaredLogger {
	log, err := zap.NewDevelopment()
	if err != nil {
		log = zap.NewNop()
	}
	return log.Sugar().Named(service)
}
