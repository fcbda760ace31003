// Package log provides the keyval-style structured logging call convention
// used throughout the teacher codebase (log.Info(msg, "k", v, "k2", v2)),
// backed by logrus instead of the teacher's vendored log15 fork.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger matches the subset of the teacher's github.com/tos-network/gtos/log
// call surface that this module needs.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

var root = New()

// New creates a root logger writing timestamped text lines to stderr, matching the
// teacher's default handler setup.
func New(ctx ...interface{}) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return (&logrusLogger{entry: logrus.NewEntry(l)}).New(ctx...)
}

func fields(ctx []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			continue
		}
		f[key] = ctx[i+1]
	}
	return f
}

func (l *logrusLogger) New(ctx ...interface{}) Logger {
	if len(ctx) == 0 {
		return l
	}
	return &logrusLogger{entry: l.entry.WithFields(fields(ctx))}
}

func (l *logrusLogger) Trace(msg string, ctx ...interface{}) { l.entry.WithFields(fields(ctx)).Trace(msg) }
func (l *logrusLogger) Debug(msg string, ctx ...interface{}) { l.entry.WithFields(fields(ctx)).Debug(msg) }
func (l *logrusLogger) Info(msg string, ctx ...interface{})  { l.entry.WithFields(fields(ctx)).Info(msg) }
func (l *logrusLogger) Warn(msg string, ctx ...interface{})  { l.entry.WithFields(fields(ctx)).Warn(msg) }
func (l *logrusLogger) Error(msg string, ctx ...interface{}) { l.entry.WithFields(fields(ctx)).Error(msg) }

// Package-level helpers mirroring the teacher's log.Info(...)/log.Warn(...)
// free functions that call through the root logger.
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
