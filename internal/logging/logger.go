package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger is the logging collaborator handed to the session and its
// authentication strategies. Messages are printf-style.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// WriterLogger writes timestamped log lines to an io.Writer
type WriterLogger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	debug  bool
}

// New creates a logger writing to w. Debug messages are dropped unless debug is set.
func New(w io.Writer, debug bool) *WriterLogger {
	return &WriterLogger{w: w, debug: debug}
}

// Open creates a logger appending to the file at path
func Open(path string, debug bool) (*WriterLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &WriterLogger{w: file, closer: file, debug: debug}
	l.Info("=== IG REST client log started ===")
	return l, nil
}

// Close closes the underlying file, if any.
// Sets the writer to nil under lock so late log calls become no-ops.
func (l *WriterLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.w = nil
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// Debug logs a debug message
func (l *WriterLogger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.log("DEBUG", format, args...)
}

// Info logs an info message
func (l *WriterLogger) Info(format string, args ...any) {
	l.log("INFO", format, args...)
}

// Warn logs a warning message
func (l *WriterLogger) Warn(format string, args ...any) {
	l.log("WARN", format, args...)
}

// Error logs an error message
func (l *WriterLogger) Error(format string, args ...any) {
	l.log("ERROR", format, args...)
}

func (l *WriterLogger) log(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.w, "[%s] %s: %s\n", timestamp, level, msg)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards everything
func Nop() Logger {
	return nopLogger{}
}
