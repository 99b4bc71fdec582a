// Package logger provides verbose logging for the taskrag CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to follow the retrieval and execution pipelines.
// Errors and capacity notices are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func printf(always bool, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if always || verbose {
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	printf(false, "[DEBUG] ", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	printf(false, "[INFO] ", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	printf(false, "[WARN] ", format, args...)
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	printf(true, "[ERROR] ", format, args...)
}

// Capacity reports a hit resource cap regardless of verbose mode.
func Capacity(resource string, limit int) {
	printf(true, "[CAPACITY] ", "%s limit of %d reached", resource, limit)
}

// Timed logs the elapsed time of a step when the returned func is called.
//
//	defer logger.Timed("embed query")()
func Timed(step string) func() {
	start := time.Now()
	return func() {
		Debug("%s took %s", step, time.Since(start).Round(time.Millisecond))
	}
}
