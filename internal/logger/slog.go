package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// SlogAdapter writes records through log/slog.
type SlogAdapter struct {
	logger *slog.Logger
}

type SlogConfig struct {
	// Writer defaults to os.Stdout.
	Writer    io.Writer
	Level     slog.Leveler
	AddSource bool
	IsJSON    bool
	UseColor  bool
}

func NewSlogAdapter(cfg SlogConfig) *SlogAdapter {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Level == nil {
		cfg.Level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.AddSource,
		Level:     cfg.Level,
	}

	var handler slog.Handler
	switch {
	case cfg.IsJSON:
		handler = slog.NewJSONHandler(cfg.Writer, opts)
	case cfg.UseColor:
		handler = tint.NewHandler(cfg.Writer, &tint.Options{
			Level:      cfg.Level,
			AddSource:  cfg.AddSource,
			TimeFormat: "2006-01-02 15:04:05",
		})
	default:
		handler = slog.NewTextHandler(cfg.Writer, opts)
	}
	return &SlogAdapter{logger: slog.New(handler)}
}

func toAttrs(fields Fields) []any {
	attrs := make([]any, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (a *SlogAdapter) Debug(msg string, fields Fields) {
	a.logger.Debug(msg, toAttrs(fields)...)
}

func (a *SlogAdapter) Info(msg string, fields Fields) {
	a.logger.Info(msg, toAttrs(fields)...)
}

func (a *SlogAdapter) Warn(msg string, fields Fields) {
	a.logger.Warn(msg, toAttrs(fields)...)
}

func (a *SlogAdapter) Error(msg string, err error, fields Fields) {
	attrs := toAttrs(fields)
	if err != nil {
		attrs = append(attrs, tint.Err(err))
	}
	a.logger.Error(msg, attrs...)
}

func (a *SlogAdapter) WithFields(fields Fields) Logger {
	return &SlogAdapter{logger: a.logger.With(toAttrs(fields)...)}
}
