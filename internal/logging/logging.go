// Package logging backs the printf-style ports.Logger with charmbracelet/log
// for hosts that run outside Nakama.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Logger satisfies ports.Logger.
type Logger struct {
	l *log.Logger
}

// New logs to stdout with the given prefix and level name.
func New(prefix, level string) *Logger {
	return NewWithWriter(os.Stdout, prefix, level)
}

func NewWithWriter(w io.Writer, prefix, level string) *Logger {
	l := log.New(w)
	l.SetPrefix(prefix)
	l.SetReportTimestamp(true)
	l.SetTimeFormat(time.DateTime)
	l.SetLevel(ParseLevel(level))
	return &Logger{l: l}
}

// ParseLevel maps debug/info/warn/error to a level; anything else is info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// SetLevel changes the level at runtime, e.g. after a config reload.
func (lg *Logger) SetLevel(level string) {
	lg.l.SetLevel(ParseLevel(level))
}

func (lg *Logger) Debug(format string, v ...interface{}) {
	lg.l.Debugf(format, v...)
}

func (lg *Logger) Info(format string, v ...interface{}) {
	lg.l.Infof(format, v...)
}

func (lg *Logger) Warn(format string, v ...interface{}) {
	lg.l.Warnf(format, v...)
}

func (lg *Logger) Error(format string, v ...interface{}) {
	lg.l.Errorf(format, v...)
}
