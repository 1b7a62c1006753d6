// Package logging provides structured JSON logging for storefront components.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	base   = newBase(os.Stderr, LevelWarn)
	baseMu sync.RWMutex
)

func newBase(out io.Writer, level Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
			logrus.FieldKeyMsg:  "event",
		},
	})
	l.SetLevel(parseLevel(level))
	return l
}

func parseLevel(level Level) logrus.Level {
	lv, err := logrus.ParseLevel(strings.ToLower(string(level)))
	if err != nil {
		return logrus.WarnLevel
	}
	return lv
}

// Configure replaces the process-wide sink. Loggers created before the call
// pick up the new sink on their next event.
func Configure(level string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	baseMu.Lock()
	base = newBase(out, Level(level))
	baseMu.Unlock()
}

func sink() *logrus.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

// Logger provides structured logging
type Logger struct {
	component string
	user      string
}

// New creates a new logger for a component
func New(component string) *Logger {
	return &Logger{component: component}
}

// WithUser sets the display-name context
func (l *Logger) WithUser(user string) *Logger {
	return &Logger{
		component: l.component,
		user:      user,
	}
}

func (l *Logger) entry(extra map[string]interface{}, err error) *logrus.Entry {
	fields := logrus.Fields{"component": l.component}
	if l.user != "" {
		fields["user"] = l.user
	}
	if len(extra) > 0 {
		fields["extra"] = extra
	}
	e := sink().WithFields(fields)
	if err != nil {
		e = e.WithField("error", err.Error())
	}
	return e
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]interface{}) {
	l.entry(extra, nil).Debug(event)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]interface{}) {
	l.entry(extra, nil).Info(event)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]interface{}, err error) {
	l.entry(extra, err).Warn(event)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]interface{}, err error) {
	l.entry(extra, err).Error(event)
}

// TimedEvent logs the settlement of an operation with its duration.
// A non-nil err raises the level to warn.
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]interface{}, err error) {
	e := l.entry(extra, err).WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		e.Warn(event)
		return
	}
	e.Debug(event)
}
