// Package sentryhub wraps github.com/getsentry/sentry-go for the one class
// of error the pipeline is expected to surface loudly: orchestrator-internal
// invariant violations, as opposed to ordinary adapter StageErrors which
// are recorded on the run and handled in place.
package sentryhub

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config configures the Sentry client. DSN empty disables reporting.
type Config struct {
	DSN         string
	Environment string
}

// Hub reports fatal, invariant-violation errors.
type Hub struct {
	enabled bool
}

// Init initializes the global Sentry client. Returns a no-op Hub when DSN
// is empty so callers don't need to branch on configuration.
func Init(cfg Config) (*Hub, error) {
	if cfg.DSN == "" {
		return &Hub{enabled: false}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	}); err != nil {
		return nil, fmt.Errorf("sentryhub: init: %w", err)
	}
	return &Hub{enabled: true}, nil
}

// ReportFatal reports an orchestrator-internal invariant violation,
// tagging it with the run and stage it occurred in.
func (h *Hub) ReportFatal(runID, stage string, err error) {
	if !h.enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", runID)
		scope.SetTag("stage", stage)
		scope.SetLevel(sentry.LevelFatal)
		sentry.CaptureException(err)
	})
}

// Flush blocks until pending events are sent or the timeout elapses.
func (h *Hub) Flush(timeout time.Duration) {
	if !h.enabled {
		return
	}
	sentry.Flush(timeout)
}
