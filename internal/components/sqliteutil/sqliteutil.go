package sqliteutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const memory = ":memory:"

// OpenDB opens the sqlite database at path, creating it and its directory
// when missing. ":memory:" opens a throwaway database.
func OpenDB(path string) (*sql.DB, error) {
	if path != memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection, sqlite serializes writers anyway and an in memory
	// database only lives as long as its connection
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	if path != memory {
		if _, err := db.Exec("pragma journal_mode = wal"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable wal: %w", err)
		}
	}
	return db, nil
}

// OpenWithSchema is OpenDB followed by executing schema, which has to be
// safe to run against an existing database.
func OpenWithSchema(schema, path string) (*sql.DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
