package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaVersionEmptyDatabase(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "empty.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	version, err := SchemaVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	assert.ErrorIs(t, ValidateSchema(conn), ErrMigrationTooOld)
}

func TestMigrationsReachLatestVersion(t *testing.T) {
	conn := OpenTestModel(t)

	version, err := SchemaVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, int64(LatestSchemaVersion), version)

	assert.NoError(t, ValidateSchema(conn))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	conn := OpenTestModel(t)
	require.NoError(t, RunMigrations(conn))

	version, err := SchemaVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, int64(LatestSchemaVersion), version)
}

func TestForeignKeyEnforcementIsOff(t *testing.T) {
	conn := OpenTestModel(t)

	// Dangling references must insert cleanly; reporting them is the
	// checker's job, not the driver's.
	_, err := conn.Exec(`INSERT INTO manholes (id, connection_node_id, bottom_level) VALUES (1, 999, 0.0)`)
	assert.NoError(t, err)
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("/data/model.sqlite")
	assert.Contains(t, dsn, "file:/data/model.sqlite?")
	assert.Contains(t, dsn, "_foreign_keys=off")
	assert.Contains(t, dsn, "_busy_timeout=5000")
}
