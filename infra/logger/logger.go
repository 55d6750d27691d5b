package logger

import corelogger "github.com/kilianp07/wildguard/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

// New returns a Logger tagged with component, writing to the output chosen by
// Configure.
func New(component string) Logger {
	return NewZerologLogger(component)
}
