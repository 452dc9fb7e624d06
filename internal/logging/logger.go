// Package logging carries a zap logger on context.Context, following the
// same contract the rest of the stack expects: components fetch a logger
// from context rather than taking one as an explicit dependency.
package logging

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const loggerKey contextKey = "logger"

// WithLogger stores logger in ctx and returns the new context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithComponent creates a sub-logger tagged with a "component" field and
// stores it back in the context.
func WithComponent(ctx context.Context, component string) context.Context {
	logger := FromContext(ctx).With(zap.String("component", component))
	return WithLogger(ctx, logger)
}

// FromContext retrieves the logger stored in ctx, falling back to a
// production logger so callers never have to nil-check.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return NewProductionLogger()
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return NewProductionLogger()
}

// NewProductionLogger builds a JSON-encoded, INFO-level logger.
func NewProductionLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewDevelopmentLogger builds a human-readable, DEBUG-level logger.
func NewDevelopmentLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewFromEnv picks development or production logging based on MONITORPLANE_ENV.
func NewFromEnv() *zap.Logger {
	env := os.Getenv("MONITORPLANE_ENV")
	if env == "development" || env == "dev" {
		return NewDevelopmentLogger()
	}
	return NewProductionLogger()
}

// Fatal logs msg at fatal level, syncs, and exits the process.
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	logger := FromContext(ctx)
	_ = logger.Sync()
	logger.Fatal(msg, fields...)
}

// Fatalf is Fatal with printf-style formatting.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	Fatal(ctx, fmt.Sprintf(format, args...))
}

// Sync flushes buffered log entries. Call before process exit.
func Sync(ctx context.Context) error {
	return FromContext(ctx).Sync()
}
