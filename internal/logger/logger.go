// Package logger provides the structured logger used across the service and
// its stdout, Fluent Bit and fan-out implementations.
package logger

import (
	"context"
	"log"
	"log/slog"
	"strings"
)

// Fields are structured key/value pairs attached to a log record.
type Fields map[string]any

// Logger is implemented by every log sink.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)
	WithFields(fields Fields) Logger
}

type loggerKey struct{}
type traceIDKey struct{}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok && l != nil {
		return l
	}
	return Nop()
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns "" when no trace id was set.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}

type nopLogger struct{}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, Fields)        {}
func (nopLogger) Info(string, Fields)         {}
func (nopLogger) Warn(string, Fields)         {}
func (nopLogger) Error(string, error, Fields) {}
func (n nopLogger) WithFields(Fields) Logger  { return n }
