package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
)

// SchemaVersion is the latest schema version supported by Migrate.
const SchemaVersion = 1

// SQLSink keeps readings in a local SQLite database.
type SQLSink struct {
	db *sql.DB
}

// OpenSQLSink opens (or creates) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func OpenSQLSink(ctx context.Context, path string) (*SQLSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single connection keeps ":memory:" one database
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w: %w", path, ErrConnection, err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLSink{db: db}, nil
}

// Migrate ensures the schema exists and is upgraded to SchemaVersion.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current)
	if err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			harvester INTEGER NOT NULL,
			pot INTEGER NOT NULL,
			moisture INTEGER NOT NULL,
			at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: create readings table: %w", err)
	}
	_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_readings_pot_at ON readings(harvester, pot, at);`)
	if err != nil {
		return fmt.Errorf("migrate: create idx_readings_pot_at: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}

// Write stores one cycle atomically.
func (s *SQLSink) Write(ctx context.Context, readings []model.Reading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write readings: %w: %w", ErrConnection, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, r := range readings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO readings (cycle_id, harvester, pot, moisture, at) VALUES (?, ?, ?, ?, ?)`,
			r.CycleID, r.Harvester, r.Pot, int(r.Moisture), r.Timestamp.UnixNano())
		if err != nil {
			return fmt.Errorf("write readings: insert h%d p%d: %w", r.Harvester, r.Pot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write readings: commit: %w", err)
	}
	return nil
}

// QueryLatest returns the most recent reading of every pot written within
// the past minutes, ordered by harvester and pot.
func (s *SQLSink) QueryLatest(ctx context.Context, minutes int) ([]model.Reading, error) {
	since := time.Now().Add(-time.Duration(minutes) * time.Minute).UnixNano()
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.cycle_id, r.harvester, r.pot, r.moisture, r.at
		FROM readings r
		JOIN (SELECT harvester, pot, MAX(id) AS id FROM readings WHERE at >= ? GROUP BY harvester, pot) l ON l.id = r.id
		ORDER BY r.harvester, r.pot`, since)
	if err != nil {
		return nil, fmt.Errorf("latest readings: query: %w", err)
	}
	defer rows.Close()

	var out []model.Reading
	for rows.Next() {
		var (
			r        model.Reading
			moisture int
			at       int64
		)
		if err := rows.Scan(&r.CycleID, &r.Harvester, &r.Pot, &moisture, &at); err != nil {
			return nil, fmt.Errorf("latest readings: scan: %w", err)
		}
		r.Moisture = byte(moisture)
		r.Timestamp = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLSink) Close() error { return s.db.Close() }
