package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultLogger writes through a logrus entry.
// Debug/Info -> stdout
// Warn/Error/Fatal -> stderr
type DefaultLogger struct {
	entry  *logrus.Entry
	stderr *logrus.Logger
	level  Level
}

// NewDefaultLogger creates a text logger, colored when stdout is a terminal
func NewDefaultLogger() *DefaultLogger {
	return newDefaultLogger(os.Stdout, os.Stderr, isTerminal())
}

// NewDefaultLoggerNoColor creates a text logger without colors
func NewDefaultLoggerNoColor() *DefaultLogger {
	return newDefaultLogger(os.Stdout, os.Stderr, false)
}

// NewDefaultLoggerTo creates an uncolored logger writing every level to w
func NewDefaultLoggerTo(w io.Writer) *DefaultLogger {
	return newDefaultLogger(w, w, false)
}

func newDefaultLogger(stdout, stderr io.Writer, colors bool) *DefaultLogger {
	formatter := &logrus.TextFormatter{
		ForceColors:     colors,
		DisableColors:   !colors,
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	}

	out := logrus.New()
	out.SetOutput(stdout)
	out.SetFormatter(formatter)
	out.SetLevel(logrus.TraceLevel)

	errOut := logrus.New()
	errOut.SetOutput(stderr)
	errOut.SetFormatter(formatter)
	errOut.SetLevel(logrus.TraceLevel)
	errOut.ExitFunc = os.Exit

	return &DefaultLogger{
		entry:  logrus.NewEntry(out),
		stderr: errOut,
		level:  InfoLevel,
	}
}

func isTerminal() bool {
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (d *DefaultLogger) target(level Level, fields ...Fields) *logrus.Entry {
	e := d.entry
	if level >= WarnLevel {
		e = e.Dup()
		e.Logger = d.stderr
	}
	for _, f := range fields {
		if len(f) > 0 {
			e = e.WithFields(logrus.Fields(f))
		}
	}
	return e
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	if d.level <= DebugLevel {
		d.target(DebugLevel, fields...).Debug(msg)
	}
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	if d.level <= InfoLevel {
		d.target(InfoLevel, fields...).Info(msg)
	}
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	if d.level <= WarnLevel {
		d.target(WarnLevel, fields...).Warn(msg)
	}
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	if d.level <= ErrorLevel {
		d.target(ErrorLevel, fields...).WithError(err).Error(msg)
	}
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.target(FatalLevel, fields...).WithError(err).Fatal(msg)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	return &DefaultLogger{
		entry:  d.entry.WithFields(logrus.Fields(fields)),
		stderr: d.stderr,
		level:  d.level,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := ctx.Value(ContextFieldsKey).(Fields); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}

func (d *DefaultLogger) setColors(enabled bool) {
	formatter := &logrus.TextFormatter{
		ForceColors:     enabled,
		DisableColors:   !enabled,
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	}
	d.entry.Logger.SetFormatter(formatter)
	d.stderr.SetFormatter(formatter)
}

// NoOpLogger discards everything
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
