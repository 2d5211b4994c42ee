// Package logging is a thin, leveled wrapper over the standard log package,
// matching the teacher's preference (seen throughout ping/ and tun/) for
// plain fmt/log diagnostics over a structured logging framework.
package logging

import (
	"log"
	"os"
)

// Level controls which calls actually reach the underlying logger.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger prefixes every line with an engine tag ("nat64", "clat") so two
// engine instances running in one process (spec.md §9) stay distinguishable
// in a shared log stream.
type Logger struct {
	tag   string
	level Level
	out   *log.Logger
}

func New(tag string, level Level) *Logger {
	return &Logger{tag: tag, level: level, out: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *Logger) log(lvl Level, label, format string, args ...interface{}) {
	if lvl < l.level {
		return
	}
	l.out.Printf("["+l.tag+"] "+label+" "+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, "DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, "INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, "WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, "ERROR", format, args...) }
