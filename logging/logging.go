// Package logging defines the small logger interface shardis calls
// against. The core library never logs on its own behalf (errors are
// always returned to the caller per spec), but the connection pool and
// fan-out engine accept a Logger for debug messages about errors they
// handle without returning them (a connection being discarded, a
// single-key command being retried).
package logging

import "github.com/sirupsen/logrus"

// Logger is the minimal logging surface shardis depends on.
type Logger interface {
	Error(args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// NopLogger discards everything. Used as the default so the library never
// requires a logger to be wired.
type NopLogger struct{}

func (NopLogger) Error(args ...any)                 {}
func (NopLogger) Errorf(format string, args ...any) {}
func (NopLogger) Debugf(format string, args ...any) {}

// LogrusLogger adapts a *logrus.Logger (or a *logrus.Entry) to Logger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l. A nil l falls back to logrus.StandardLogger().
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) Error(args ...any) {
	l.entry.Error(args...)
}

func (l *LogrusLogger) Errorf(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func (l *LogrusLogger) Debugf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}
