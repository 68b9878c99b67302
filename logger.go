package binderalloc

import (
	"github.com/sirupsen/logrus"
)

// Logger is the small sink binderalloc writes its printf-style diagnostics
// to, mirroring the original driver's binder_debug()/ALOGE() call sites
// (spec.md's logging is unspecified; this follows the host CLI's own
// logrus.FieldLogger-shaped usage).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NopLogger discards everything. It is the default a nil Logger is replaced
// with by NewRegion, so library callers never have to wire one up just to
// satisfy the constructor.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...interface{}) {}
func (NopLogger) Infof(string, ...interface{})  {}
func (NopLogger) Errorf(string, ...interface{}) {}

// logrusLogger adapts a *logrus.Entry to Logger, the same way the host CLI
// wraps a configured logrus.Logger before handing it to a subsystem.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l (already configured with level, formatter, and
// output by the caller) for use as a Region's Logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	return logrusLogger{entry: logrus.NewEntry(l)}
}

func (l logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
