// Package monitoring holds the process-wide error reporter. Agents and
// adapters report through the package functions so tests and binaries
// without Sentry keep working.
package monitoring

import (
	"sync/atomic"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Breadcrumb records a step leading up to the next captured error.
	Breadcrumb(category, message string, data map[string]any)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Breadcrumb(string, string, map[string]any) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

type holder struct{ m Monitor }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{m: NopMonitor{}}) }

// Init sets the global monitor implementation. nil is ignored.
func Init(m Monitor) {
	if m != nil {
		current.Store(&holder{m: m})
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	current.Load().m.CaptureException(err, tags)
}

// Breadcrumb records a step on the current monitor.
func Breadcrumb(category, message string, data map[string]any) {
	current.Load().m.Breadcrumb(category, message, data)
}

// Recover reports a panic and re-panics. Use it deferred.
func Recover() {
	current.Load().m.Recover()
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	current.Load().m.Flush(d)
}
