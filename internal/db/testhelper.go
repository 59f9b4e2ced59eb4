package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestModel opens an empty model database in t.TempDir(), runs all
// pending migrations and registers cleanup. Tests insert the rows they
// need with plain SQL.
func OpenTestModel(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "model.sqlite")

	mdb, err := Open(path)
	if err != nil {
		t.Fatalf("open test model: %v", err)
	}
	t.Cleanup(func() {
		_ = mdb.Close()
	})

	if err := RunMigrations(mdb); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return mdb
}
