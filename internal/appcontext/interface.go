// Package appcontext provides the shared application context interface
// used by all commands. Commands accept the interface rather than the
// concrete App, so tests can run them against a Mock.
package appcontext

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/internal/cmd/alerts"
	"github.com/agentstation/stagehand/internal/cmd/output"
	"github.com/agentstation/stagehand/internal/drafts"
	"github.com/agentstation/stagehand/pkg/staging"
)

// Remote holds the defaults for submitting sessions to a backend.
type Remote struct {
	Endpoint   string
	Token      string
	AuthScheme string
	Timeout    time.Duration
}

// Interface defines the application context that commands need.
type Interface interface {
	// Store returns the draft store, opening it on first use.
	Store() (drafts.Store, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format.
	OutputFormat() output.Format

	// Alerts returns the writer for status lines.
	Alerts() *alerts.Writer

	// EngineOptions returns the staging options derived from configuration.
	EngineOptions() []staging.Option

	// Remote returns the configured submit defaults.
	Remote() Remote

	// Version returns the application version string.
	Version() string
}
