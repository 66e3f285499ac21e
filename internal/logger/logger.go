// Package logger provides the structured logging facade used across the
// application. It wraps log/slog behind a small interface so packages can
// accept an injected Logger without depending on a concrete backend.
package logger

import (
	"io"
	"log/slog"
	"time"
)

// LogLevel controls the minimum severity a logger emits.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Field is a single structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field holding an arbitrary value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Error creates a field with the conventional "error" key.
// A nil error produces an empty value rather than the string "<nil>".
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger is the logging interface injected into application components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that includes the given fields on every line.
	With(fields ...Field) Logger
}

// Options tunes slog handler behavior.
type Options struct {
	// AddSource includes file:line of the call site.
	AddSource bool
	// JSON selects the JSON handler instead of text.
	JSON bool
}

// slogLogger implements Logger on top of log/slog.
type slogLogger struct {
	sl *slog.Logger
}

// NewSlogLogger creates a Logger writing to w at the given level.
// A nil opts uses the text handler without source locations.
func NewSlogLogger(w io.Writer, level LogLevel, opts *Options) Logger {
	if opts == nil {
		opts = &Options{}
	}
	hopts := &slog.HandlerOptions{
		Level:     slogLevel(level),
		AddSource: opts.AddSource,
	}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	return &slogLogger{sl: slog.New(handler)}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func toAttrs(fields []Field) []any {
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func (l *slogLogger) Debug(msg string, fields ...Field) { l.sl.Debug(msg, toAttrs(fields)...) }
func (l *slogLogger) Info(msg string, fields ...Field)  { l.sl.Info(msg, toAttrs(fields)...) }
func (l *slogLogger) Warn(msg string, fields ...Field)  { l.sl.Warn(msg, toAttrs(fields)...) }
func (l *slogLogger) Error(msg string, fields ...Field) { l.sl.Error(msg, toAttrs(fields)...) }

func (l *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{sl: l.sl.With(toAttrs(fields)...)}
}

// ParseLevel maps a config string to a LogLevel. Unknown values mean info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}
