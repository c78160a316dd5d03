// Package app provides the application context and dependency management
// for the stagehand CLI: configuration, logging and the draft store.
package app

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/cmd/alerts"
	"github.com/agentstation/stagehand/internal/cmd/output"
	"github.com/agentstation/stagehand/internal/drafts"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/staging"
)

// App represents the stagehand application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Draft store (lazy-initialized, closed on Shutdown)
	mu    sync.Mutex
	store drafts.Store
}

var _ appcontext.Interface = (*App)(nil)

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format, detected from the
// terminal when none was set.
func (a *App) OutputFormat() output.Format {
	return output.DetectFormat(a.config.Format)
}

// Alerts returns a status writer on stderr.
func (a *App) Alerts() *alerts.Writer {
	return alerts.NewWriter(os.Stderr, a.config.NoColor, a.config.Quiet)
}

// EngineOptions returns the staging options from the configuration.
func (a *App) EngineOptions() []staging.Option {
	return a.config.EngineOptions()
}

// Remote returns the submit defaults from the configuration.
func (a *App) Remote() appcontext.Remote {
	return appcontext.Remote{
		Endpoint:   a.config.Endpoint,
		Token:      a.config.Token,
		AuthScheme: a.config.AuthScheme,
		Timeout:    a.config.Timeout,
	}
}

// Store returns the draft store, opening the badger database in the data
// directory on first use.
func (a *App) Store() (drafts.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}
	store, err := drafts.OpenBadger(a.config.DraftDir(), drafts.WithStoreLogger(a.logger))
	if err != nil {
		return nil, errors.WrapResource("open", "draft store", a.config.DraftDir(), err)
	}
	a.store = store
	return store, nil
}

// Shutdown releases the draft store.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	store := a.store
	a.store = nil
	a.mu.Unlock()

	if store == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- store.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithStore sets the draft store (useful for testing).
func WithStore(store drafts.Store) Option {
	return func(a *App) error {
		a.store = store
		return nil
	}
}
