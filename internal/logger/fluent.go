package logger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// FluentPoster is the part of *fluent.Fluent the adapter needs.
type FluentPoster interface {
	Post(tag string, message interface{}) error
}

// FluentAdapter ships records to Fluent Bit, tagged by level.
type FluentAdapter struct {
	client   FluentPoster
	fields   Fields
	minLevel slog.Level
}

type FluentConfig struct {
	Host      string
	Port      int
	TagPrefix string
}

// NewFluentClient dials nothing: the connection is established on the first Post.
func NewFluentClient(cfg FluentConfig) (*fluent.Fluent, error) {
	if cfg.TagPrefix == "" {
		return nil, fmt.Errorf("fluentd tag prefix is required")
	}
	client, err := fluent.New(fluent.Config{
		FluentHost: cfg.Host,
		FluentPort: cfg.Port,
		TagPrefix:  cfg.TagPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fluentd logger: %w", err)
	}
	return client, nil
}

func NewFluentAdapter(client FluentPoster, minLevel slog.Leveler) (*FluentAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("fluent client cannot be nil")
	}
	level := slog.LevelInfo
	if minLevel != nil {
		level = minLevel.Level()
	}
	return &FluentAdapter{client: client, fields: Fields{}, minLevel: level}, nil
}

func (a *FluentAdapter) merge(fields Fields) Fields {
	merged := make(Fields, len(a.fields)+len(fields)+3)
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

func (a *FluentAdapter) post(level slog.Level, tag, msg string, data Fields) {
	if level < a.minLevel {
		return
	}
	data["level"] = tag
	data["message"] = msg
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	_ = a.client.Post(tag, data)
}

func (a *FluentAdapter) Debug(msg string, fields Fields) {
	a.post(slog.LevelDebug, "debug", msg, a.merge(fields))
}

func (a *FluentAdapter) Info(msg string, fields Fields) {
	a.post(slog.LevelInfo, "info", msg, a.merge(fields))
}

func (a *FluentAdapter) Warn(msg string, fields Fields) {
	a.post(slog.LevelWarn, "warn", msg, a.merge(fields))
}

func (a *FluentAdapter) Error(msg string, err error, fields Fields) {
	data := a.merge(fields)
	if err != nil {
		data["error"] = err.Error()
	}
	a.post(slog.LevelError, "error", msg, data)
}

func (a *FluentAdapter) WithFields(fields Fields) Logger {
	return &FluentAdapter{client: a.client, fields: a.merge(fields), minLevel: a.minLevel}
}
