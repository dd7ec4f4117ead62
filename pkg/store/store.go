// Package store persists reconciled race records.
//
// A Store loads and saves whole records: one event with its ordered
// variants and their provenance sets. Save is atomic per record and assigns
// stable IDs to variants seen for the first time. Three drivers ship: an
// in-memory map, a directory of YAML documents, and SQL (SQLite or Postgres).
package store

import (
	"context"
	"strings"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

// Store is the persistence collaborator of the reconciler.
type Store interface {
	// Load returns the stored record for an event. It returns an error
	// matching errors.ErrNotFound when the event has never been saved.
	Load(ctx context.Context, eventID string) (*races.Record, error)

	// Save writes the whole record as one logical write. Variants without
	// an ID get one, and the record's timestamps are updated in place.
	Save(ctx context.Context, rec *races.Record) error

	// List returns the stored event IDs in ascending order.
	List(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}

// Driver names.
const (
	DriverMemory   = "memory"
	DriverFiles    = "files"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Drivers returns the supported driver names.
func Drivers() []string {
	return []string{DriverMemory, DriverFiles, DriverSQLite, DriverPostgres}
}

// Config selects and configures a driver.
type Config struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverFiles:
		if cfg.Dir == "" {
			return nil, errors.NewConfigError("store", "files driver requires store.dir", nil)
		}
		return NewFiles(cfg.Dir)
	case DriverSQLite, DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.NewConfigError("store", cfg.Driver+" driver requires store.dsn", nil)
		}
		return OpenSQL(ctx, strings.ToLower(cfg.Driver), cfg.DSN)
	default:
		return nil, errors.NewConfigError("store", "unknown driver "+cfg.Driver, errors.ErrInvalidInput)
	}
}

// AssignIDs gives every variant without an ID a new one.
func AssignIDs(rec *races.Record) {
	for i := range rec.Variants {
		if rec.Variants[i].ID == "" {
			rec.Variants[i].ID = uuid.NewString()
		}
	}
}

// prepare validates a record before it is written and stamps it.
func prepare(rec *races.Record) error {
	if rec == nil {
		return errors.NewValidationError("record", nil, "record is nil")
	}
	if strings.TrimSpace(rec.Event.ExternalID) == "" {
		return errors.NewValidationError("external_id", rec.Event.ExternalID, "event has no external ID")
	}
	AssignIDs(rec)
	now := utc.Now()
	if rec.Event.CreatedAt.IsZero() {
		rec.Event.CreatedAt = now
	}
	rec.Event.UpdatedAt = now
	return nil
}

func notFound(eventID string) error {
	return errors.NewNotFoundError("event", eventID)
}
