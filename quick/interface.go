// Package quick is a convenience wrapper over the logger package for
// callers that don't want to thread a context through their whole call
// tree. It lazily self-initializes with default configuration on first
// use, ported from the teacher's quick/ subpackage.
package quick

import (
	"context"
	"fmt"

	"github.com/lixenwraith/logengine"
)

// Debug logs a debug-level message. Dropped if the logger's level is
// above debug, or if lazy initialization has previously failed.
func Debug(format string, args ...any) {
	if !logger.EnsureInitialized() {
		return
	}
	logger.Debug(context.Background(), format, args...)
}

// Info logs an info-level message.
func Info(format string, args ...any) {
	if !logger.EnsureInitialized() {
		return
	}
	logger.Info(context.Background(), format, args...)
}

// Warn logs a warning-level message.
func Warn(format string, args ...any) {
	if !logger.EnsureInitialized() {
		return
	}
	logger.Warn(context.Background(), format, args...)
}

// Error logs an error-level message.
func Error(format string, args ...any) {
	if !logger.EnsureInitialized() {
		return
	}
	logger.Error(context.Background(), format, args...)
}

// DebugTrace is Debug with call-site trace capture.
func DebugTrace(depth int, format string, args ...any) {
	if !logger.EnsureInitialized() {
		return
	}
	logger.DebugTrace(context.Background(), depth, format, args...)
}

// InfoTrace is Info with call-site trace capture.
func InfoTrace(depth int, format string, args ...any) {
	if !logger.EnsureInitialized() {
		return
	}
	logger.InfoTrace(context.Background(), depth, format, args...)
}

// WarnTrace is Warn with call-site trace capture.
func WarnTrace(depth int, format string, args ...any) {
	if !logger.EnsureInitialized() {
		return
	}
	logger.WarnTrace(context.Background(), depth, format, args...)
}

// ErrorTrace is Error with call-site trace capture.
func ErrorTrace(depth int, format string, args ...any) {
	if !logger.EnsureInitialized() {
		return
	}
	logger.ErrorTrace(context.Background(), depth, format, args...)
}

// Config reconfigures the lazily-initialized logger from dotted-path
// string statements, e.g. quick.Config("logger.level=debug",
// "sink.file.log_path=/tmp/a.log").
func Config(args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("no config provided")
	}
	cfg, err := config(args...)
	if err != nil {
		return err
	}
	return logger.Config(cfg)
}

// Shutdown gracefully shuts down the lazily-initialized logger.
func Shutdown() {
	_ = logger.Shutdown(context.Background())
}
