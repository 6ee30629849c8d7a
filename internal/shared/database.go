package shared

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDatabase is the path that opens a private in-memory journal.
const MemoryDatabase = ":memory:"

// journalPragmas let the outcome recorder write while a CLI reads.
const journalPragmas = "?_journal_mode=WAL&_busy_timeout=5000"

// NewDatabase opens the SQLite journal at path, creating its parent directory if needed.
func NewDatabase(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryDatabase {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = "file:" + path + journalPragmas
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// each pooled connection to :memory: would be its own empty database
	if path == MemoryDatabase {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// ConfigureDatabase applies the configured pool limits. Non-positive values keep the driver defaults.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
