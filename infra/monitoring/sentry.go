// Package monitoring reports engine errors to Sentry.
package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/wildguard/config"
	coremon "github.com/kilianp07/wildguard/core/monitoring"
)

// NewSentryMonitor builds a Sentry hub from cfg and returns it as a Monitor.
// An empty DSN disables reporting. Configured tags are set on every event.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		MaxBreadcrumbs:   50,
		BeforeSend:       dropShutdownErrors,
	})
	if err != nil {
		return nil, err
	}
	scope := sentry.NewScope()
	scope.SetTags(cfg.Tags)
	return &sentryMonitor{hub: sentry.NewHub(client, scope)}, nil
}

// dropShutdownErrors discards events caused by context cancellation, which
// every agent reports while the engine stops.
func dropShutdownErrors(ev *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint != nil && hint.OriginalException != nil && errors.Is(hint.OriginalException, context.Canceled) {
		return nil
	}
	return ev
}

type sentryMonitor struct {
	hub *sentry.Hub
}

// CaptureException reports err. Events carrying an "incident" tag are
// fingerprinted per incident so one noisy incident does not hide the others.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if id := tags["incident"]; id != "" {
			scope.SetFingerprint([]string{"{{ default }}", id})
		}
		s.hub.CaptureException(err)
	})
}

// Breadcrumb records an engine step shown with the next captured event.
func (s *sentryMonitor) Breadcrumb(category, message string, data map[string]any) {
	s.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Data:      data,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
