package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Open abre (o crea) el cache local on-device en SQLite embebido,
// con WAL para lecturas concurrentes.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS pets (
		id                     TEXT PRIMARY KEY,
		remote_ref             TEXT NOT NULL DEFAULT '',
		owner_id               TEXT NOT NULL,
		display_name           TEXT NOT NULL,
		image_blob             BLOB,
		image_ref              TEXT NOT NULL DEFAULT '',
		is_shared              INTEGER NOT NULL DEFAULT 0,
		is_share_accepted      INTEGER NOT NULL DEFAULT 0,
		share_ref              TEXT NOT NULL DEFAULT '',
		share_counterpart_name TEXT NOT NULL DEFAULT '',
		last_modified          TEXT NOT NULL,
		created_at             TEXT NOT NULL,
		pending                INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id            TEXT PRIMARY KEY,
		remote_ref    TEXT NOT NULL DEFAULT '',
		pet_ref       TEXT NOT NULL,
		kind          TEXT NOT NULL,
		occurred_at   TEXT NOT NULL,
		last_modified TEXT NOT NULL,
		pending       INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_events_pet_ref ON events(pet_ref);
	CREATE INDEX IF NOT EXISTS idx_pets_pending   ON pets(pending);
	CREATE INDEX IF NOT EXISTS idx_events_pending ON events(pending);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate cache schema: %w", err)
	}
	return nil
}
