// Package logging provides structured logging for forge, built on
// log/slog so every subsystem (graph, cache, sandbox, executor, planner)
// logs through one consistent, component-tagged interface instead of
// ad-hoc fmt.Printf calls.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Level mirrors slog's levels with an explicit Fatal alias for call sites
// that want to make severity obvious without importing slog directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is forge's logging interface; every package depends on this,
// never on *slog.Logger directly, so call sites stay mockable in tests.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// Config configures a ForgeLogger.
type Config struct {
	Level     Level
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultConfig returns sane defaults: text output to stdout at info level.
func DefaultConfig() *Config {
	return &Config{
		Level:     LevelInfo,
		Format:    "text",
		Output:    os.Stdout,
		AddSource: false,
	}
}

// ForgeLogger implements Logger on top of log/slog.
type ForgeLogger struct {
	logger    *slog.Logger
	level     Level
	component string
	fields    map[string]interface{}
}

// New creates a new structured logger from cfg (nil uses DefaultConfig).
func New(cfg *Config) *ForgeLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug, // level filtering happens in ForgeLogger's methods
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return &ForgeLogger{
		logger:    slog.New(handler),
		level:     cfg.Level,
		component: cfg.Component,
		fields:    make(map[string]interface{}),
	}
}

func (l *ForgeLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	l.log(ctx, slog.LevelDebug, nil, msg, fields...)
}

func (l *ForgeLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	l.log(ctx, slog.LevelInfo, nil, msg, fields...)
}

func (l *ForgeLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	l.log(ctx, slog.LevelWarn, err, msg, fields...)
}

func (l *ForgeLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	if l.level > LevelError {
		return
	}
	l.log(ctx, slog.LevelError, err, msg, fields...)
}

// With returns a logger that carries the given key/value pairs on every
// subsequent call, in addition to any fields already attached.
func (l *ForgeLogger) With(fields ...interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields)/2)
	for k, v := range l.fields {
		newFields[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			newFields[key] = fields[i+1]
		}
	}
	return &ForgeLogger{logger: l.logger, level: l.level, component: l.component, fields: newFields}
}

// WithComponent returns a logger tagged with the given component name
// (e.g. "cache", "executor", "sandbox").
func (l *ForgeLogger) WithComponent(component string) Logger {
	return &ForgeLogger{logger: l.logger, level: l.level, component: component, fields: l.fields}
}

func (l *ForgeLogger) log(ctx context.Context, level slog.Level, err error, msg string, fields ...interface{}) {
	if l.logger == nil {
		fmt.Fprintf(os.Stderr, "[%s] logger unavailable: %s\n", level, msg)
		return
	}

	attrs := make([]slog.Attr, 0, len(l.fields)+len(fields)/2+2)

	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	for k, v := range l.fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok && key != "" {
			attrs = append(attrs, slog.Any(key, fields[i+1]))
		}
	}

	record := slog.NewRecord(time.Now(), level, msg, 0)
	record.AddAttrs(attrs...)

	if handler := l.logger.Handler(); handler != nil {
		if herr := handler.Handle(ctx, record); herr != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] failed to write log: %v (original message: %s)\n", herr, msg)
		}
	}
}

var _ Logger = (*ForgeLogger)(nil)

// Noop returns a Logger that discards everything, useful as a test default.
func Noop() Logger {
	return New(&Config{Level: LevelFatal, Format: "text", Output: io.Discard})
}
