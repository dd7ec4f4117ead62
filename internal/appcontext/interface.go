// Package appcontext provides the shared application context interface
// used by all commands.
package appcontext

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/racesync"
	"github.com/agentstation/racesync/internal/metrics"
)

// Interface defines the application context that commands need.
// The App struct from cmd/racesync/app implements it; tests use Mock.
type Interface interface {
	// Client returns the shared client, opening the configured store on
	// first use. It is safe for concurrent use.
	Client() (racesync.Client, error)

	// ClientWithOptions creates a separate client with the configured
	// options plus opts. The caller closes it.
	ClientWithOptions(opts ...racesync.Option) (racesync.Client, error)

	// Metrics returns the metrics every client of this app records into.
	Metrics() *metrics.Metrics

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, wide).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
