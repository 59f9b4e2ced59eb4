package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// Schema versions correspond to the goose migration ids in
// migrations/. MinSchemaVersion is the oldest model file the checker can
// interpret; older files must be migrated first.
const (
	MinSchemaVersion    = 1
	LatestSchemaVersion = 2
)

// ErrMigrationTooOld is returned when the model file's schema version is
// below MinSchemaVersion. No check may run against such a file.
var ErrMigrationTooOld = errors.New("model schema is too old, run a migration first")

// ErrSchemaTooNew is returned when the model file was written by a newer
// schema than this build knows about. The caller may proceed, results can
// be incomplete.
var ErrSchemaTooNew = errors.New("model schema is newer than this checker supports")

// SchemaVersion reads the tracked schema version from the goose version
// table. A database without a version table reports version 0.
func SchemaVersion(db *sql.DB) (int64, error) {
	var exists int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'goose_db_version'`,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int64
	err = db.QueryRow(
		`SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied`,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// ValidateSchema gates a validation run on the tracked schema version.
//
// Below MinSchemaVersion it returns ErrMigrationTooOld (fatal); above
// LatestSchemaVersion it returns ErrSchemaTooNew, which callers should
// treat as a warning.
func ValidateSchema(db *sql.DB) error {
	version, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if version < MinSchemaVersion {
		return fmt.Errorf("%w (version %d < %d)", ErrMigrationTooOld, version, MinSchemaVersion)
	}
	if version > LatestSchemaVersion {
		return fmt.Errorf("%w (version %d > %d)", ErrSchemaTooNew, version, LatestSchemaVersion)
	}
	return nil
}
