package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelQuiet // No output
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// sink is shared by a logger and every logger derived from it with Named.
type sink struct {
	level      Level
	output     io.Writer
	fileOutput *os.File
	mu         sync.Mutex
	nowFunc    func() time.Time
}

// Logger handles application logging. Named loggers prefix each line with
// the component name, e.g. "[poller] Polling for new version".
type Logger struct {
	sink   *sink
	prefix string
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the default logger instance
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(os.Stderr, LevelInfo)
	})
	return defaultLogger
}

// New creates a logger writing to output at the given level.
func New(output io.Writer, level Level) *Logger {
	return &Logger{sink: &sink{
		level:   level,
		output:  output,
		nowFunc: time.Now,
	}}
}

// Named returns a logger sharing this logger's output and level whose
// lines are prefixed with [name].
func (l *Logger) Named(name string) *Logger {
	return &Logger{sink: l.sink, prefix: "[" + name + "] "}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// SetVerbose enables debug output
func (l *Logger) SetVerbose(verbose bool) {
	if verbose {
		l.SetLevel(LevelDebug)
	}
}

// SetQuiet disables all output except errors
func (l *Logger) SetQuiet(quiet bool) {
	if quiet {
		l.SetLevel(LevelError)
	}
}

// EnableFileLogging appends every line to paperbot.log under LogDir.
func (l *Logger) EnableFileLogging() error {
	logDir, err := LogDir()
	if err != nil {
		return err
	}
	return l.EnableFileLoggingIn(logDir)
}

// EnableFileLoggingIn appends every line to paperbot.log under dir.
func (l *Logger) EnableFileLoggingIn(dir string) error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(dir, "paperbot.log")
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	if l.sink.fileOutput != nil {
		l.sink.fileOutput.Close()
	}
	l.sink.fileOutput = f
	return nil
}

// Close closes the log file if open
func (l *Logger) Close() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.fileOutput != nil {
		l.sink.fileOutput.Close()
		l.sink.fileOutput = nil
	}
}

// LogDir returns the log directory path
func LogDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	// Use XDG_STATE_HOME for logs (standard for runtime data)
	xdgState := os.Getenv("XDG_STATE_HOME")
	if xdgState == "" {
		xdgState = filepath.Join(home, ".local", "state")
	}

	return filepath.Join(xdgState, "paperbot", "logs"), nil
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	timestamp := s.nowFunc().Format("2006-01-02 15:04:05")
	msg := l.prefix + fmt.Sprintf(format, args...)

	fmt.Fprintf(s.output, "%s %-5s %s\n", timestamp, levelNames[level], msg)

	if s.fileOutput != nil {
		fmt.Fprintf(s.fileOutput, "[%s] %s: %s\n", timestamp, levelNames[level], msg)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Package-level convenience functions
func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }
func Info(format string, args ...interface{})  { Default().Info(format, args...) }
func Warn(format string, args ...interface{})  { Default().Warn(format, args...) }
func Error(format string, args ...interface{}) { Default().Error(format, args...) }
func Named(name string) *Logger                { return Default().Named(name) }
func SetVerbose(v bool)                        { Default().SetVerbose(v) }
func SetQuiet(q bool)                          { Default().SetQuiet(q) }
