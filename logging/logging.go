package logging

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level represents log levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name (case-insensitive) to a Level
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return DebugLevel, true
	case "info", "":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Fields represents structured logging fields
type Fields map[string]any

type contextKey string

// ContextFieldsKey is the context key WithContext reads Fields from
const ContextFieldsKey contextKey = "logger_fields"

// ContextWithFields returns a child context carrying fields for WithContext
func ContextWithFields(ctx context.Context, fields Fields) context.Context {
	return context.WithValue(ctx, ContextFieldsKey, fields)
}

// Logger defines the interface that the library expects for logging
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)
	Fatal(err error, msg string, fields ...Fields)

	// WithFields returns a logger with preset fields
	WithFields(fields Fields) Logger

	// WithContext returns a logger that can extract fields from context
	WithContext(ctx context.Context) Logger

	// SetLevel sets the minimum log level
	SetLevel(level Level)
}

var globalLogger Logger = NewDefaultLogger()

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		globalLogger = &NoOpLogger{}
	} else {
		globalLogger = logger
	}
}

// GetGlobalLogger returns the current global logger
func GetGlobalLogger() Logger {
	return globalLogger
}

// LoggerFromAppLogger creates a library logger from an application logger.
// Our own Logger is used as is, logrus loggers and entries are wrapped, and
// anything else falls back to the default logger.
//
// Example integration:
// appLog := logrus.WithField("service", "pitchd")
// logging.SetGlobalLogger(logging.LoggerFromAppLogger(appLog))
func LoggerFromAppLogger(appLogger any) Logger {
	switch l := appLogger.(type) {
	case nil:
		return NewDefaultLogger()
	case Logger:
		return l
	case *logrus.Entry:
		return NewLogrusLogger(l)
	case *logrus.Logger:
		return NewLogrusLogger(logrus.NewEntry(l))
	default:
		return NewDefaultLogger()
	}
}

// LogrusLogger adapts an application's logrus entry to our interface
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps entry; a nil entry uses the logrus standard logger
func NewLogrusLogger(entry *logrus.Entry) *LogrusLogger {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogrusLogger{entry: entry}
}

func (a *LogrusLogger) with(fields []Fields) *logrus.Entry {
	e := a.entry
	for _, f := range fields {
		if len(f) > 0 {
			e = e.WithFields(logrus.Fields(f))
		}
	}
	return e
}

func (a *LogrusLogger) Debug(msg string, fields ...Fields) {
	a.with(fields).Debug(msg)
}

func (a *LogrusLogger) Info(msg string, fields ...Fields) {
	a.with(fields).Info(msg)
}

func (a *LogrusLogger) Warn(msg string, fields ...Fields) {
	a.with(fields).Warn(msg)
}

func (a *LogrusLogger) Error(err error, msg string, fields ...Fields) {
	a.with(fields).WithError(err).Error(msg)
}

func (a *LogrusLogger) Fatal(err error, msg string, fields ...Fields) {
	a.with(fields).WithError(err).Fatal(msg)
}

func (a *LogrusLogger) WithFields(fields Fields) Logger {
	return &LogrusLogger{entry: a.entry.WithFields(logrus.Fields(fields))}
}

func (a *LogrusLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := ctx.Value(ContextFieldsKey).(Fields); ok {
		return a.WithFields(fields)
	}
	return &LogrusLogger{entry: a.entry.WithContext(ctx)}
}

// SetLevel changes the level of the underlying logrus logger, which is shared
// by every entry derived from it
func (a *LogrusLogger) SetLevel(level Level) {
	a.entry.Logger.SetLevel(level.logrusLevel())
}

// Package-level logging functions that use the global logger
func Debug(msg string, fields ...Fields) {
	globalLogger.Debug(msg, fields...)
}

func Info(msg string, fields ...Fields) {
	globalLogger.Info(msg, fields...)
}

func Warn(msg string, fields ...Fields) {
	globalLogger.Warn(msg, fields...)
}

func Error(err error, msg string, fields ...Fields) {
	globalLogger.Error(err, msg, fields...)
}

func Fatal(err error, msg string, fields ...Fields) {
	globalLogger.Fatal(err, msg, fields...)
}

func WithFields(fields Fields) Logger {
	return globalLogger.WithFields(fields)
}

func WithContext(ctx context.Context) Logger {
	return globalLogger.WithContext(ctx)
}

func SetLevel(level Level) {
	globalLogger.SetLevel(level)
}

// DisableColors globally disables color output for the default logger
func DisableColors() {
	if defaultLogger, ok := globalLogger.(*DefaultLogger); ok {
		defaultLogger.setColors(false)
	}
}

// EnableColors globally enables color output for the default logger
func EnableColors() {
	if defaultLogger, ok := globalLogger.(*DefaultLogger); ok {
		defaultLogger.setColors(true)
	}
}
