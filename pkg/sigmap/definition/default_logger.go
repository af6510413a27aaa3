// Package definition holds small cross-cutting interfaces shared by every
// component, mirroring the teacher's pkg/mcast/definition package.
package definition

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger is implemented by anything that can receive leveled diagnostics
// from the runtime. The method set is the teacher's
// pkg/mcast/definition.Logger without Panic/Panicf, so call sites elsewhere
// in this module read like the teacher's.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	ToggleDebug(value bool) bool
}

// DefaultLogger is the Logger used when a caller does not supply its own,
// backed by hashicorp/go-hclog instead of the teacher's raw stdlib *log.Logger
// (SPEC_FULL.md §10.1).
type DefaultLogger struct {
	hlog  hclog.Logger
	debug bool
}

// NewDefaultLogger builds a DefaultLogger writing to stderr at Info level.
func NewDefaultLogger(name string) *DefaultLogger {
	return &DefaultLogger{
		hlog: hclog.New(&hclog.LoggerOptions{
			Name:   name,
			Output: os.Stderr,
			Level:  hclog.Info,
		}),
	}
}

func (l *DefaultLogger) Info(v ...interface{})  { l.hlog.Info(fmt.Sprint(v...)) }
func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.hlog.Info(fmt.Sprintf(format, v...))
}
func (l *DefaultLogger) Warn(v ...interface{}) { l.hlog.Warn(fmt.Sprint(v...)) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.hlog.Warn(fmt.Sprintf(format, v...))
}
func (l *DefaultLogger) Error(v ...interface{}) { l.hlog.Error(fmt.Sprint(v...)) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.hlog.Error(fmt.Sprintf(format, v...))
}
func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.hlog.Debug(fmt.Sprint(v...))
	}
}
func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.hlog.Debug(fmt.Sprintf(format, v...))
	}
}
func (l *DefaultLogger) Fatal(v ...interface{}) {
	l.hlog.Error(fmt.Sprint(v...))
	os.Exit(1)
}
func (l *DefaultLogger) Fatalf(format string, v ...interface{}) {
	l.hlog.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

// ToggleDebug flips the logger between Info and Debug verbosity, matching
// the teacher's ToggleDebug(bool) bool signature.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.hlog.SetLevel(hclog.Debug)
	} else {
		l.hlog.SetLevel(hclog.Info)
	}
	return l.debug
}
