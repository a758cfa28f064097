package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F is a shorthand for creating a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err is a shorthand for an "error" field
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Config holds logger configuration
type Config struct {
	Level      Level  // Minimum log level
	FilePath   string // Path to log file, empty disables file output
	MaxSize    int64  // Max size in bytes before rotation
	MaxAge     int    // Max age in days
	MaxBackups int    // Max number of backup files
	Console    bool   // Also write to stderr
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	logPath := ""
	if home != "" {
		logPath = filepath.Join(home, ".irontrack", "logs", "irontrack.log")
	}

	return Config{
		Level:      INFO,
		FilePath:   logPath,
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     7,
		MaxBackups: 5,
		Console:    false, // would draw over the TUI
	}
}

// Logger writes leveled, single-line entries to one or more outputs
type Logger struct {
	config  Config
	file    *os.File
	mu      *sync.Mutex
	fields  []Field
	writers []io.Writer
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Init initializes the process-wide logger. Only the first call has effect.
func Init(config Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(config)
	})
	return err
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	l := &Logger{
		config: config,
		mu:     &sync.Mutex{},
	}

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = file
		l.writers = append(l.writers, file)

		if err := l.rotateIfNeeded(); err != nil {
			return nil, err
		}
	}

	if config.Console {
		l.writers = append(l.writers, os.Stderr)
	}

	return l, nil
}

// NewWriter creates a logger that writes only to w, without rotation
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		config:  Config{Level: level},
		mu:      &sync.Mutex{},
		writers: []io.Writer{w},
	}
}

// rotateIfNeeded must be called with l.mu held or before l is shared
func (l *Logger) rotateIfNeeded() error {
	if l.file == nil || l.config.MaxSize <= 0 {
		return nil
	}

	info, err := l.file.Stat()
	if err != nil {
		return err
	}

	if info.Size() >= l.config.MaxSize {
		return l.rotate()
	}

	if l.config.MaxAge > 0 && info.Size() > 0 &&
		time.Since(info.ModTime()) > time.Duration(l.config.MaxAge)*24*time.Hour {
		return l.rotate()
	}

	return nil
}

// rotate shifts backups (.1 → .2 ...) and reopens a fresh file
func (l *Logger) rotate() error {
	if l.file != nil {
		_ = l.file.Close()
	}

	for i := l.config.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", l.config.FilePath, i)
		newPath := fmt.Sprintf("%s.%d", l.config.FilePath, i+1)
		_ = os.Rename(oldPath, newPath)
	}

	if _, err := os.Stat(l.config.FilePath); err == nil {
		if err := os.Rename(l.config.FilePath, l.config.FilePath+".1"); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	l.file = file
	l.writers = []io.Writer{file}
	if l.config.Console {
		l.writers = append(l.writers, os.Stderr)
	}

	return nil
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	if level < l.config.Level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.rotateIfNeeded()

	_, file, line, ok := runtime.Caller(3)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s: %s", time.Now().Format("2006-01-02 15:04:05.000"), level, caller, msg)

	if len(l.fields)+len(fields) > 0 {
		b.WriteString(" |")
		for _, f := range l.fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
		for _, f := range fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
	}
	b.WriteByte('\n')

	entry := []byte(b.String())
	for _, w := range l.writers {
		_, _ = w.Write(entry)
	}
}

// WithFields creates a child logger with preset fields. The child shares
// outputs and the write lock with its parent.
func (l *Logger) WithFields(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	preset := make([]Field, 0, len(l.fields)+len(fields))
	preset = append(preset, l.fields...)
	preset = append(preset, fields...)
	return &Logger{
		config:  l.config,
		file:    l.file,
		mu:      l.mu,
		fields:  preset,
		writers: l.writers,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	l.logAt(DEBUG, msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	l.logAt(INFO, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	l.logAt(WARN, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	l.logAt(ERROR, msg, fields)
}

// logAt keeps the caller depth identical for methods and package functions
func (l *Logger) logAt(level Level, msg string, fields []Field) {
	if l == nil {
		return
	}
	l.log(level, msg, fields)
}

// Close closes the log file
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Global logger functions

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	globalLogger.logAt(DEBUG, msg, fields)
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	globalLogger.logAt(INFO, msg, fields)
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	globalLogger.logAt(WARN, msg, fields)
}

// Error logs an error message using the global logger
func Error(msg string, fields ...Field) {
	globalLogger.logAt(ERROR, msg, fields)
}

// Default returns the global logger, or nil before Init.
// All *Logger methods are safe to call on nil.
func Default() *Logger {
	return globalLogger
}

// Close closes the global logger
func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}
