package harness

import (
	"fmt"
	"os"
)

// Logger provides leveled printf-style logging for the harness. Warnings
// (cleanup problems the run tolerates) are always visible; debug output is
// opt-in because it includes every external command line.
type Logger interface {
	// Debug logs debug-level messages (only shown when debug is enabled)
	Debug(format string, args ...interface{})
	// Info logs info-level messages (shown when verbose or debug is enabled)
	Info(format string, args ...interface{})
	// Warn logs warnings that do not fail the run (always shown)
	Warn(format string, args ...interface{})
	// Error logs error-level messages (always shown)
	Error(format string, args ...interface{})
	// IsDebugEnabled returns whether debug logging is enabled
	IsDebugEnabled() bool
}

// stdoutLogger writes to stdout/stderr for CLI runs.
type stdoutLogger struct {
	verbose bool
	debug   bool
}

// NewStdoutLogger creates a logger that outputs to stdout/stderr.
func NewStdoutLogger(verbose, debug bool) Logger {
	return &stdoutLogger{verbose: verbose, debug: debug}
}

func (l *stdoutLogger) Debug(format string, args ...interface{}) {
	if l.debug {
		fmt.Printf(format, args...)
	}
}

func (l *stdoutLogger) Info(format string, args ...interface{}) {
	if l.verbose || l.debug {
		fmt.Printf(format, args...)
	}
}

func (l *stdoutLogger) Warn(format string, args ...interface{}) {
	fmt.Printf("⚠️  "+format, args...)
}

func (l *stdoutLogger) Error(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (l *stdoutLogger) IsDebugEnabled() bool { return l.debug }

// silentLogger suppresses all output. Used by tests that only care about
// behavior, not log text.
type silentLogger struct{}

// NewSilentLogger creates a logger that discards everything.
func NewSilentLogger() Logger { return silentLogger{} }

func (silentLogger) Debug(format string, args ...interface{}) {}
func (silentLogger) Info(format string, args ...interface{})  {}
func (silentLogger) Warn(format string, args ...interface{})  {}
func (silentLogger) Error(format string, args ...interface{}) {}
func (silentLogger) IsDebugEnabled() bool                     { return false }
