package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import for side-effects only
)

// Connect opens the local SQLite database and ensures the schema exists.
// It automatically applies recommended settings for concurrency (WAL mode).
func Connect(dbPath string) (Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Use robust connection settings to prevent "database locked" errors
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &sqlStore{db: db, kind: "sqlite"}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	shopsTable := `
	CREATE TABLE IF NOT EXISTS shops (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  location TEXT NOT NULL,
	  identity_key TEXT NOT NULL,
	  contact_key TEXT NOT NULL DEFAULT '',
	  name TEXT NOT NULL,
	  category TEXT,
	  rating REAL,
	  reviews INTEGER,
	  address TEXT,
	  phone TEXT,
	  website TEXT,
	  hours TEXT,
	  source TEXT NOT NULL,
	  first_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  last_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  is_active INTEGER DEFAULT 1,
	  UNIQUE (location, identity_key, contact_key)
	);
	CREATE INDEX IF NOT EXISTS idx_shops_location ON shops(location, is_active);
	`
	if _, err := db.Exec(shopsTable); err != nil {
		return err
	}

	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
	  id TEXT PRIMARY KEY,
	  location TEXT NOT NULL,
	  categories TEXT NOT NULL DEFAULT '',
	  sources TEXT NOT NULL DEFAULT '',
	  fetched INTEGER NOT NULL DEFAULT 0,
	  rejected INTEGER NOT NULL DEFAULT 0,
	  unique_count INTEGER NOT NULL DEFAULT 0,
	  failed INTEGER NOT NULL DEFAULT 0,
	  output TEXT NOT NULL DEFAULT '',
	  table_error TEXT NOT NULL DEFAULT '',
	  started_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(runsTable)
	return err
}
