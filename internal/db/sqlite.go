// Package db opens hydraulic-model SQLite files, applies the model schema
// migrations and gates validation runs on the tracked schema version.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite DSN parameters. A validation run never writes, but the model file
// may be open in an editor at the same time, so we keep a busy timeout.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
)

// Open opens a *sql.DB pool for the given model file path.
//
// The pool is sized for the sequential, read-only access pattern of a
// validation run. Foreign key enforcement stays off: broken foreign keys
// are what the checker reports, not what the driver should reject.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func buildDSN(path string) string {
	params := url.Values{}
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "off")
	return "file:" + path + "?" + params.Encode()
}
