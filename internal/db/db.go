package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the client's SQLite state database
type DB struct {
	*sql.DB
}

// DefaultDBPath returns the default database path (~/.irontrack/state.db)
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".irontrack", "state.db"), nil
}

// Open opens or creates the SQLite database. ":memory:" opens a private
// in-memory database.
func Open(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pooled connection to :memory: would see its own empty database.
	if dbPath == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	db := &DB{DB: sqlDB}

	if err := db.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// OpenDefault opens the database at the default path
func OpenDefault() (*DB, error) {
	path, err := DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}
