package appcontext

import (
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/internal/cmd/alerts"
	"github.com/agentstation/stagehand/internal/cmd/output"
	"github.com/agentstation/stagehand/internal/drafts"
	"github.com/agentstation/stagehand/pkg/staging"
)

// Mock provides an implementation of Interface for testing. Unset fields
// fall back to an in-memory store, a no-op logger, JSON output and the
// default engine options.
type Mock struct {
	StoreFunc     func() (drafts.Store, error)
	LoggerFunc    func() *zerolog.Logger
	Format        output.Format
	AlertWriter   io.Writer
	Options       []staging.Option
	RemoteConfig  Remote
	VersionString string

	once  sync.Once
	store drafts.Store
}

// Store returns the store from StoreFunc or a shared in-memory store.
func (m *Mock) Store() (drafts.Store, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc()
	}
	m.once.Do(func() {
		m.store = drafts.NewMemoryStore()
	})
	return m.store, nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns Format, or JSON when unset.
func (m *Mock) OutputFormat() output.Format {
	if m.Format == "" {
		return output.FormatJSON
	}
	return m.Format
}

// Alerts writes to AlertWriter, or discards alerts when unset.
func (m *Mock) Alerts() *alerts.Writer {
	w := m.AlertWriter
	if w == nil {
		w = io.Discard
	}
	return alerts.NewWriter(w, true, false)
}

// EngineOptions returns Options.
func (m *Mock) EngineOptions() []staging.Option {
	return m.Options
}

// Remote returns RemoteConfig.
func (m *Mock) Remote() Remote {
	return m.RemoteConfig
}

// Version returns VersionString or "dev".
func (m *Mock) Version() string {
	if m.VersionString == "" {
		return "dev"
	}
	return m.VersionString
}

var _ Interface = (*Mock)(nil)
