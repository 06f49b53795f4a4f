package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l LogLevel) backendLevel() log.Level {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel
	case LogLevelWarn:
		return log.WarnLevel
	case LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// parseLogLevel parses a string log level (case-insensitive) into a LogLevel
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger provides leveled logging on top of a charmbracelet logger.
type Logger struct {
	level   LogLevel
	backend *log.Logger
}

// NewLogger creates a logger writing to stderr at the given level.
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) *Logger {
	lvl := parseLogLevel(level)
	backend := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "ecogrid",
	})
	backend.SetLevel(lvl.backendLevel())
	return &Logger{level: lvl, backend: backend}
}

// Level returns the minimum level that is written.
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) Debugf(format string, v ...any) {
	l.backend.Debugf(format, v...)
}

func (l *Logger) Infof(format string, v ...any) {
	l.backend.Infof(format, v...)
}

func (l *Logger) Warnf(format string, v ...any) {
	l.backend.Warnf(format, v...)
}

func (l *Logger) Errorf(format string, v ...any) {
	l.backend.Errorf(format, v...)
}

// Fatalf logs an error message and exits
func (l *Logger) Fatalf(format string, v ...any) {
	l.backend.Fatalf(format, v...)
}

func (l *Logger) Debug(v ...any) {
	l.backend.Debug(fmt.Sprint(v...))
}

func (l *Logger) Info(v ...any) {
	l.backend.Info(fmt.Sprint(v...))
}

func (l *Logger) Warn(v ...any) {
	l.backend.Warn(fmt.Sprint(v...))
}

func (l *Logger) Error(v ...any) {
	l.backend.Error(fmt.Sprint(v...))
}
