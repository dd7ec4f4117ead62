// Package app provides the application context and dependency management
// for the racesync CLI: configuration, logging, the shared store and the
// lazily created client.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/cmd/output"
	"github.com/agentstation/racesync/internal/metrics"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/store"
)

// App represents the racesync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config  *Config
	logger  *zerolog.Logger
	metrics *metrics.Metrics
	out     io.Writer

	// Store and client (lazy-initialized, singletons)
	mu        sync.RWMutex
	store     store.Store
	ownsStore bool
	client    racesync.Client
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the default locations; options override it.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		metrics: metrics.New(),
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, err
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

// Metrics returns the metrics shared by every client of the app.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// OutputFormat returns the explicit --format, or table on a terminal and
// json otherwise.
func (a *App) OutputFormat() string {
	return string(output.DetectFormat(a.config.Format))
}

// Store returns the configured store, opening it on first use.
func (a *App) Store() (store.Store, error) {
	a.mu.RLock()
	if a.store != nil {
		s := a.store
		a.mu.RUnlock()
		return s, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openStoreLocked()
}

func (a *App) openStoreLocked() (store.Store, error) {
	// Double-check after acquiring write lock
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(context.Background(), a.config.Store)
	if err != nil {
		return nil, errors.NewConfigError("store", "opening "+a.config.Store.Driver+" store", err)
	}
	a.logger.Debug().Str("driver", a.config.Store.Driver).Msg("store opened")
	a.store, a.ownsStore = s, true
	return s, nil
}

// Client returns the shared client, creating it lazily if needed.
// This is thread-safe and ensures only one instance is created.
func (a *App) Client() (racesync.Client, error) {
	a.mu.RLock()
	if a.client != nil {
		c := a.client
		a.mu.RUnlock()
		return c, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	opts, err := a.clientOptionsLocked()
	if err != nil {
		return nil, err
	}
	c, err := racesync.New(opts...)
	if err != nil {
		return nil, errors.NewConfigError("client", "creating client", err)
	}
	a.client = c
	return c, nil
}

// ClientWithOptions returns a new client that shares the app store and
// metrics. Commands use it to add collectors or switch on dry-run mode.
func (a *App) ClientWithOptions(extra ...racesync.Option) (racesync.Client, error) {
	a.mu.Lock()
	opts, err := a.clientOptionsLocked()
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c, err := racesync.New(append(opts, extra...)...)
	if err != nil {
		return nil, errors.NewConfigError("client", "creating client with custom options", err)
	}
	return c, nil
}

// clientOptionsLocked constructs client options from the configuration.
func (a *App) clientOptionsLocked() ([]racesync.Option, error) {
	s, err := a.openStoreLocked()
	if err != nil {
		return nil, err
	}
	auth, err := a.config.Authority()
	if err != nil {
		return nil, err
	}
	return []racesync.Option{
		racesync.WithStore(s),
		racesync.WithAuthorities(auth),
		racesync.WithMetrics(a.metrics),
		racesync.WithConcurrency(a.config.Concurrency),
		racesync.WithSourceTimeout(a.config.SourceTimeout),
		racesync.WithTolerance(a.config.Tolerance),
		racesync.WithInference(a.config.Inference),
	}, nil
}

// WriteMetrics writes the metrics textfile when one is configured.
func (a *App) WriteMetrics() error {
	if a.config.MetricsTextfile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.config.MetricsTextfile); err != nil {
		return errors.WrapIO("write", a.config.MetricsTextfile, err)
	}
	a.logger.Debug().Str("path", a.config.MetricsTextfile).Msg("metrics written")
	return nil
}

// Shutdown releases the client and the store.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			errs = append(errs, err)
		}
		a.client = nil
	}
	if a.store != nil && a.ownsStore {
		if err := a.store.Close(); err != nil {
			errs = append(errs, errors.WrapPersistence("close", "", err))
		}
	}
	a.store = nil
	return errors.Join(errs...)
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

// WithStore sets the store (useful for testing). The app does not close it.
func WithStore(s store.Store) Option {
	return func(a *App) error {
		if s == nil {
			return errors.NewValidationError("store", nil, "cannot be nil")
		}
		a.store, a.ownsStore = s, false
		return nil
	}
}

// WithOutput redirects command output (useful for testing).
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}
