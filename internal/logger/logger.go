// Package logger provides leveled logging for the objcount server.
//
// Every level is backed by a stdlib *log.Logger so entries keep the familiar
// "date time file:line: message" layout. Output goes to stderr by default
// because stdout carries the MCP protocol.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level is the minimum severity a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a level name to a Level. Unknown names fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

const flags = log.Ldate | log.Ltime | log.Lshortfile

// Logger writes leveled entries. It is safe for concurrent use.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	level      Level
	files      []*os.File
	mu         sync.Mutex
}

// New creates a Logger writing every level to w.
func New(w io.Writer, level Level) *Logger {
	return &Logger{
		debugLog:   log.New(w, "DEBUG   ", flags),
		infoLog:    log.New(w, "INFO    ", flags),
		warningLog: log.New(w, "WARNING ", flags),
		errorLog:   log.New(w, "ERROR   ", flags),
		level:      level,
	}
}

// NewWithDir creates a Logger that mirrors each level into its own file
// (debug.log, info.log, warning.log, error.log) under dir, in addition to w.
func NewWithDir(w io.Writer, level Level, dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{level: level}
	open := func(name string) (io.Writer, error) {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files = append(l.files, f)
		return io.MultiWriter(w, f), nil
	}

	targets := []struct {
		file   string
		prefix string
		dst    **log.Logger
	}{
		{"debug.log", "DEBUG   ", &l.debugLog},
		{"info.log", "INFO    ", &l.infoLog},
		{"warning.log", "WARNING ", &l.warningLog},
		{"error.log", "ERROR   ", &l.errorLog},
	}
	for _, t := range targets {
		out, err := open(t.file)
		if err != nil {
			l.Close()
			return nil, err
		}
		*t.dst = log.New(out, t.prefix, flags)
	}
	return l, nil
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

// Level reports the configured minimum level. A nil Logger reports a level
// above error.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelError + 1
	}
	return l.level
}

// Debug writes a formatted debug-level entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.output(LevelDebug, format, v...)
}

// Info writes a formatted info-level entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(LevelInfo, format, v...)
}

// Warning writes a formatted warning-level entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.output(LevelWarning, format, v...)
}

// Error writes a formatted error-level entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(LevelError, format, v...)
}

// output picks the destination only after the nil and level checks, so a nil
// Logger drops everything.
func (l *Logger) output(level Level, format string, v ...interface{}) {
	if l == nil || level < l.level {
		return
	}

	var dst *log.Logger
	switch level {
	case LevelDebug:
		dst = l.debugLog
	case LevelInfo:
		dst = l.infoLog
	case LevelWarning:
		dst = l.warningLog
	default:
		dst = l.errorLog
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// depth 3: output -> Info/Error -> caller
	dst.Output(3, fmt.Sprintf(format, v...))
}

// Close releases any log files opened by NewWithDir.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
