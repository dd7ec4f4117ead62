package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentstation/utc"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

const eventColumns = "external_id, name, event_date, event_type, event_level, location, detailed_address, organizer, contact_phone, contact_email, contact_person, description, event_url, registration_deadline, total_scale, status, manually_modified_fields, inferred_fields, confidence, created_at, updated_at, manual_updated_at"

const variantColumns = "id, event_id, sort_order, name, distance, fee, early_fee, total_quota, registered_count, start_time, cutoff_time, price_per_km, registration_status, registration_url, manually_modified_fields, inferred_fields, confidence"

// SQL is a Store backed by database/sql. SQLite uses modernc.org/sqlite and
// Postgres uses lib/pq. Each Save is one transaction.
type SQL struct {
	db      *sql.DB
	dialect string
}

// OpenSQL connects to a database and creates the schema if needed.
func OpenSQL(ctx context.Context, dialect, dsn string) (*SQL, error) {
	ctx = ensureContext(ctx)
	driverName := dialect
	if dialect == DriverSQLite {
		if err := ensureParentDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}

	if dialect == DriverSQLite {
		// One connection keeps the pragmas in effect for every statement.
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}

	s := &SQL{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func ensureParentDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIO("create", dir, err)
	}
	return nil
}

func (s *SQL) q(query string) string { return rebind(s.dialect, query) }

func (s *SQL) initSchema(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == DriverPostgres {
		schema = postgresSchema
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if count == 0 {
		if _, err := tx.ExecContext(ctx, s.q("INSERT INTO schema_version (version) VALUES (?)"), schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	} else {
		var version int
		if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return errors.NewConfigError("store", fmt.Sprintf("database has schema version %d, expected %d", version, schemaVersion), nil)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load implements Store.
func (s *SQL) Load(ctx context.Context, eventID string) (*races.Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+eventColumns+" FROM race_events WHERE external_id = ?"), eventID)
	ev, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound(eventID)
		}
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}

	rows, err := s.db.QueryContext(ctx, s.q("SELECT "+variantColumns+" FROM race_variants WHERE event_id = ? ORDER BY sort_order"), eventID)
	if err != nil {
		return nil, fmt.Errorf("load variants %s: %w", eventID, err)
	}
	defer func() { _ = rows.Close() }()

	rec := &races.Record{Event: *ev}
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		rec.Variants = append(rec.Variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return rec, nil
}

// Save implements Store.
func (s *SQL) Save(ctx context.Context, rec *races.Record) error {
	ctx = ensureContext(ctx)
	if err := prepare(rec); err != nil {
		return err
	}
	return retryOnBusy(ctx, func() error {
		return s.save(ctx, rec)
	})
}

func (s *SQL) save(ctx context.Context, rec *races.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	args, err := eventArgs(&rec.Event)
	if err != nil {
		return err
	}
	cols := strings.Split(eventColumns, ", ")
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		if c == "created_at" {
			continue
		}
		updates = append(updates, c+" = excluded."+c)
	}
	upsert := "INSERT INTO race_events (" + eventColumns + ") VALUES (" + placeholders(len(cols)) + ")" +
		" ON CONFLICT (external_id) DO UPDATE SET " + strings.Join(updates, ", ")
	if _, err := tx.ExecContext(ctx, s.q(upsert), args...); err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q("DELETE FROM race_variants WHERE event_id = ?"), rec.Event.ExternalID); err != nil {
		return fmt.Errorf("clear variants: %w", err)
	}

	insert := s.q("INSERT INTO race_variants (" + variantColumns + ") VALUES (" + placeholders(len(strings.Split(variantColumns, ", "))) + ")")
	for i := range rec.Variants {
		vargs, err := variantArgs(rec.Event.ExternalID, i, &rec.Variants[i])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, vargs...); err != nil {
			return fmt.Errorf("insert variant %s: %w", rec.Variants[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQL) List(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT external_id FROM race_events ORDER BY external_id")
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func eventArgs(e *races.Event) ([]any, error) {
	var location any
	if e.Location != nil {
		data, err := json.Marshal(e.Location)
		if err != nil {
			return nil, fmt.Errorf("encode location: %w", err)
		}
		location = string(data)
	}
	confidence, err := encodeConfidence(e.Confidence)
	if err != nil {
		return nil, err
	}
	var status any
	if e.Status != nil {
		status = string(*e.Status)
	}
	var manualAt any
	if e.ManualUpdatedAt != nil {
		manualAt = formatTime(*e.ManualUpdatedAt)
	}
	return []any{
		e.ExternalID,
		nullableString(e.Name),
		nullableString(e.Date),
		nullableString(e.Type),
		nullableString(e.Level),
		location,
		nullableString(e.DetailedAddress),
		nullableString(e.Organizer),
		nullableString(e.ContactPhone),
		nullableString(e.ContactEmail),
		nullableString(e.ContactPerson),
		nullableString(e.Description),
		nullableString(e.URL),
		nullableString(e.RegistrationDeadline),
		nullableInt(e.TotalScale),
		status,
		e.ManualFields,
		e.Inferred,
		confidence,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
		manualAt,
	}, nil
}

func variantArgs(eventID string, order int, v *races.Variant) ([]any, error) {
	confidence, err := encodeConfidence(v.Confidence)
	if err != nil {
		return nil, err
	}
	var status any
	if v.RegistrationStatus != nil {
		status = string(*v.RegistrationStatus)
	}
	return []any{
		v.ID,
		eventID,
		order,
		nullableString(v.Name),
		nullableFloat(v.Distance),
		nullableFloat(v.Fee),
		nullableFloat(v.EarlyFee),
		nullableInt(v.Quota),
		nullableInt(v.Registered),
		nullableString(v.StartTime),
		nullableString(v.CutoffTime),
		nullableFloat(v.UnitPrice),
		status,
		nullableString(v.RegistrationURL),
		v.ManualFields,
		v.Inferred,
		confidence,
	}, nil
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (*races.Event, error) {
	var (
		e          races.Event
		name       sql.NullString
		date       sql.NullString
		typ        sql.NullString
		level      sql.NullString
		location   sql.NullString
		address    sql.NullString
		organizer  sql.NullString
		phone      sql.NullString
		email      sql.NullString
		person     sql.NullString
		desc       sql.NullString
		url        sql.NullString
		deadline   sql.NullString
		scale      sql.NullInt64
		status     sql.NullString
		confidence sql.NullString
		createdRaw string
		updatedRaw string
		manualRaw  sql.NullString
	)
	if err := scanner.Scan(
		&e.ExternalID,
		&name,
		&date,
		&typ,
		&level,
		&location,
		&address,
		&organizer,
		&phone,
		&email,
		&person,
		&desc,
		&url,
		&deadline,
		&scale,
		&status,
		&e.ManualFields,
		&e.Inferred,
		&confidence,
		&createdRaw,
		&updatedRaw,
		&manualRaw,
	); err != nil {
		return nil, err
	}

	e.Name = stringPtr(name)
	e.Date = stringPtr(date)
	e.Type = stringPtr(typ)
	e.Level = stringPtr(level)
	e.DetailedAddress = stringPtr(address)
	e.Organizer = stringPtr(organizer)
	e.ContactPhone = stringPtr(phone)
	e.ContactEmail = stringPtr(email)
	e.ContactPerson = stringPtr(person)
	e.Description = stringPtr(desc)
	e.URL = stringPtr(url)
	e.RegistrationDeadline = stringPtr(deadline)
	if scale.Valid {
		n := int(scale.Int64)
		e.TotalScale = &n
	}
	if status.Valid {
		st := races.Status(status.String)
		e.Status = &st
	}
	if location.Valid && location.String != "" {
		var loc races.Location
		if err := json.Unmarshal([]byte(location.String), &loc); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		e.Location = &loc
	}
	var err error
	if e.Confidence, err = decodeConfidence(confidence); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, err
	}
	if manualRaw.Valid && manualRaw.String != "" {
		t, err := parseTime(manualRaw.String)
		if err != nil {
			return nil, err
		}
		e.ManualUpdatedAt = &t
	}
	return &e, nil
}

func scanVariant(scanner interface{ Scan(dest ...any) error }) (*races.Variant, error) {
	var (
		v          races.Variant
		eventID    string
		order      int
		name       sql.NullString
		distance   sql.NullFloat64
		fee        sql.NullFloat64
		earlyFee   sql.NullFloat64
		quota      sql.NullInt64
		registered sql.NullInt64
		start      sql.NullString
		cutoff     sql.NullString
		unitPrice  sql.NullFloat64
		status     sql.NullString
		regURL     sql.NullString
		confidence sql.NullString
	)
	if err := scanner.Scan(
		&v.ID,
		&eventID,
		&order,
		&name,
		&distance,
		&fee,
		&earlyFee,
		&quota,
		&registered,
		&start,
		&cutoff,
		&unitPrice,
		&status,
		&regURL,
		&v.ManualFields,
		&v.Inferred,
		&confidence,
	); err != nil {
		return nil, err
	}

	v.Name = stringPtr(name)
	v.Distance = floatPtr(distance)
	v.Fee = floatPtr(fee)
	v.EarlyFee = floatPtr(earlyFee)
	v.Quota = intPtr(quota)
	v.Registered = intPtr(registered)
	v.StartTime = stringPtr(start)
	v.CutoffTime = stringPtr(cutoff)
	v.UnitPrice = floatPtr(unitPrice)
	v.RegistrationURL = stringPtr(regURL)
	if status.Valid {
		st := races.RegistrationStatus(status.String)
		v.RegistrationStatus = &st
	}
	var err error
	if v.Confidence, err = decodeConfidence(confidence); err != nil {
		return nil, err
	}
	return &v, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return int64(*value)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func encodeConfidence(m map[string]float64) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode confidence: %w", err)
	}
	return string(data), nil
}

func decodeConfidence(ns sql.NullString) (map[string]float64, error) {
	if !ns.Valid || ns.String == "" || ns.String == "{}" {
		return nil, nil
	}
	var m map[string]float64
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, fmt.Errorf("decode confidence: %w", err)
	}
	return m, nil
}

func formatTime(t utc.Time) string {
	return t.Time.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (utc.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return utc.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return utc.New(t), nil
}
