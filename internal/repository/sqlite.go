package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is the storage format for every timestamp column: UTC text, so
// lexicographic comparison orders chronologically and strftime() works on it.
const timeLayout = "2006-01-02 15:04:05"

type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS staging_events (
			staging_id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_name TEXT NOT NULL,
			source_event_id TEXT NOT NULL,
			event_time TEXT,
			location_text TEXT,
			latitude REAL,
			longitude REAL,
			disaster_type TEXT NOT NULL DEFAULT '',
			magnitude_value REAL,
			magnitude_unit TEXT,
			fatalities INTEGER,
			economic_loss TEXT,
			affected INTEGER,
			raw_json BLOB,
			processed INTEGER NOT NULL DEFAULT 0,
			claimed_by TEXT,
			claimed_at TEXT,
			ingested_at TEXT NOT NULL,
			UNIQUE(source_name, source_event_id)
		);

		CREATE TABLE IF NOT EXISTS event_type_dim (
			event_type_id INTEGER PRIMARY KEY AUTOINCREMENT,
			disaster_group TEXT NOT NULL,
			disaster_type TEXT NOT NULL,
			disaster_subtype TEXT NOT NULL DEFAULT '',
			UNIQUE(disaster_group, disaster_type, disaster_subtype)
		);

		CREATE TABLE IF NOT EXISTS location_dim (
			location_id INTEGER PRIMARY KEY AUTOINCREMENT,
			location_key TEXT NOT NULL UNIQUE,
			location_name TEXT,
			normalized_name TEXT,
			latitude REAL,
			longitude REAL,
			country_iso3 TEXT
		);

		CREATE TABLE IF NOT EXISTS magnitude_dim (
			magnitude_id INTEGER PRIMARY KEY AUTOINCREMENT,
			primary_value REAL,
			primary_unit TEXT
		);

		CREATE TABLE IF NOT EXISTS source_audit (
			source_record_id INTEGER PRIMARY KEY AUTOINCREMENT,
			staging_id INTEGER NOT NULL,
			source_name TEXT NOT NULL,
			source_event_id TEXT NOT NULL,
			raw_payload BLOB,
			status TEXT NOT NULL,
			processed_at TEXT NOT NULL,
			FOREIGN KEY (staging_id) REFERENCES staging_events(staging_id)
		);

		CREATE TABLE IF NOT EXISTS event_fact (
			event_id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_time TEXT NOT NULL,
			event_time_end TEXT,
			location_id INTEGER NOT NULL,
			event_type_id INTEGER NOT NULL,
			magnitude_id INTEGER,
			fatalities_total INTEGER,
			economic_loss_usd INTEGER,
			affected_total INTEGER,
			is_master_event INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			FOREIGN KEY (location_id) REFERENCES location_dim(location_id),
			FOREIGN KEY (event_type_id) REFERENCES event_type_dim(event_type_id),
			FOREIGN KEY (magnitude_id) REFERENCES magnitude_dim(magnitude_id)
		);

		CREATE TABLE IF NOT EXISTS event_source_junction (
			event_id INTEGER NOT NULL,
			source_record_id INTEGER NOT NULL UNIQUE,
			PRIMARY KEY (event_id, source_record_id),
			FOREIGN KEY (event_id) REFERENCES event_fact(event_id),
			FOREIGN KEY (source_record_id) REFERENCES source_audit(source_record_id)
		);

		CREATE TABLE IF NOT EXISTS etl_errors (
			error_id INTEGER PRIMARY KEY AUTOINCREMENT,
			staging_id INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_staging_pending ON staging_events(processed, ingested_at);
		CREATE INDEX IF NOT EXISTS idx_fact_event_time ON event_fact(event_time);
		CREATE INDEX IF NOT EXISTS idx_fact_master ON event_fact(is_master_event);
		CREATE INDEX IF NOT EXISTS idx_junction_event ON event_source_junction(event_id);
		CREATE INDEX IF NOT EXISTS idx_location_normalized ON location_dim(normalized_name);

		CREATE VIEW IF NOT EXISTS v_master_events AS
		SELECT
			f.event_id,
			f.event_time,
			t.disaster_group,
			t.disaster_type,
			NULLIF(t.disaster_subtype, '') AS disaster_subtype,
			l.location_name,
			l.country_iso3 AS country_code,
			l.latitude,
			l.longitude,
			f.fatalities_total,
			f.economic_loss_usd,
			f.affected_total
		FROM event_fact f
		JOIN event_type_dim t ON t.event_type_id = f.event_type_id
		JOIN location_dim l ON l.location_id = f.location_id
		WHERE f.is_master_event = 1;
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn against a transaction-scoped load surface, committing only
// when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(WarehouseTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&warehouseTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

type warehouseTx struct {
	tx *sql.Tx
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing stored time %q: %w", s, err)
	}
	return t, nil
}

// Bind helpers: pointer fields map to NULL when nil.

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Scan helpers: NULL columns map back to nil pointers.

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func timePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseStoredTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
