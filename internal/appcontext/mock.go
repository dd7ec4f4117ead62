package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/metrics"
)

// Mock provides a mock implementation of Interface for testing.
// If a function field is nil, the method returns a default value.
type Mock struct {
	ClientFunc            func() (racesync.Client, error)
	ClientWithOptionsFunc func(...racesync.Option) (racesync.Client, error)
	MetricsValue          *metrics.Metrics
	LoggerFunc            func() *zerolog.Logger
	Format                string
	VersionFunc           func() string
}

// Client returns a client using the mock function or a new in-memory client.
func (m *Mock) Client() (racesync.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc()
	}
	return racesync.New()
}

// ClientWithOptions returns a client using the mock function or racesync.New.
func (m *Mock) ClientWithOptions(opts ...racesync.Option) (racesync.Client, error) {
	if m.ClientWithOptionsFunc != nil {
		return m.ClientWithOptionsFunc(opts...)
	}
	return racesync.New(opts...)
}

// Metrics returns MetricsValue, which may be nil.
func (m *Mock) Metrics() *metrics.Metrics {
	return m.MetricsValue
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns Format, defaulting to json.
func (m *Mock) OutputFormat() string {
	if m.Format == "" {
		return "json"
	}
	return m.Format
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns "unknown".
func (m *Mock) Commit() string { return "unknown" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }

// Ensure Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
