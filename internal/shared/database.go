package shared

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens the sqlite database that holds the CLI's sync bookkeeping (cursors, tracked documents).
// The path can be ":memory:" for an in-memory database.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase applies the pool limits from [DatabaseConfig].
//
// An in-memory database must keep a single connection, otherwise each connection sees its own empty schema.
func ConfigureDatabase(db *sql.DB, conf DatabaseConfig) {
	open, idle := conf.MaxOpenConns, conf.MaxIdleConns
	if open <= 0 || conf.Path == ":memory:" {
		open = 1
	}
	if idle <= 0 || idle > open {
		idle = open
	}
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(idle)
}
