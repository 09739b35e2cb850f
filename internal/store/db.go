package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQLite mirror, an alternative to the JSON documents.
type DB struct {
	*sql.DB
}

var _ Mirror = (*DB)(nil)

// Open creates a SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	// One writer; full-rewrite transactions would otherwise contend on the busy timeout.
	db.SetMaxOpenConns(1)
	return &DB{db}, nil
}
