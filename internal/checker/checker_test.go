package checker

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodtools/modelchecker/internal/checks"
	"github.com/floodtools/modelchecker/internal/db"
	"github.com/floodtools/modelchecker/internal/raster"
)

func wkbGeom(t *testing.T, wkt string) []byte {
	t.Helper()
	g, err := geom.UnmarshalWKT(wkt)
	require.NoError(t, err)
	return g.AsBinary()
}

// codeIDs runs the checker at the given level and collects the row ids
// reported under one error code.
func codeIDs(t *testing.T, chk *Checker, level checks.Severity, code int) []int64 {
	t.Helper()
	results, err := chk.Errors(context.Background(), level)
	require.NoError(t, err)
	var ids []int64
	for _, r := range results {
		if r.Check.Code() == code {
			ids = append(ids, r.Row.ID)
		}
	}
	return ids
}

func newTestChecker(t *testing.T, opts Options) (*Checker, *sql.DB) {
	t.Helper()
	modelDB := db.OpenTestModel(t)
	rctx := checks.LocalContext{BasePath: t.TempDir(), Rasters: raster.TIFF()}
	chk, err := New(modelDB, NewConfig(opts), rctx, slog.Default())
	require.NoError(t, err)
	return chk, modelDB
}

func TestCheckerOnEmptyModel(t *testing.T) {
	chk, _ := newTestChecker(t, Options{})
	results, err := chk.Errors(context.Background(), checks.Info)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCheckerReportsViolations(t *testing.T) {
	chk, modelDB := newTestChecker(t, Options{})
	_, err := modelDB.Exec(`INSERT INTO global_settings
		(id, use_0d_inflow, use_1d_flow, use_2d_flow, epsg_code, nr_timesteps, sim_time_step, kmax, numerical_settings_id)
		VALUES (1, 0, 1, 1, 28992, 100, -30, 4, 999)`)
	require.NoError(t, err)

	results, err := chk.Errors(context.Background(), checks.Error)
	require.NoError(t, err)

	codes := map[int]bool{}
	for _, r := range results {
		codes[r.Check.Code()] = true
		assert.Equal(t, int64(1), r.Row.ID)
	}
	// Dangling numerical_settings_id and non-positive sim_time_step.
	assert.True(t, codes[checks.CodeForeignKey])
	assert.True(t, codes[45])
}

func TestCheckerSeverityThreshold(t *testing.T) {
	chk, modelDB := newTestChecker(t, Options{})
	// flooding_threshold out of range is a warning, not an error.
	_, err := modelDB.Exec(`INSERT INTO global_settings
		(id, use_0d_inflow, use_1d_flow, use_2d_flow, epsg_code, nr_timesteps, sim_time_step, kmax, numerical_settings_id, flooding_threshold)
		VALUES (1, 0, 1, 1, 28992, 100, 30, 4, 1, 0.5)`)
	require.NoError(t, err)
	_, err = modelDB.Exec(`INSERT INTO numerical_settings (id) VALUES (1)`)
	require.NoError(t, err)

	atError, err := chk.Errors(context.Background(), checks.Error)
	require.NoError(t, err)
	for _, r := range atError {
		assert.NotEqual(t, 43, r.Check.Code())
	}

	atWarning, err := chk.Errors(context.Background(), checks.Warning)
	require.NoError(t, err)
	found := false
	for _, r := range atWarning {
		if r.Check.Code() == 43 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckerRejectsUnmigratedModel(t *testing.T) {
	path := t.TempDir() + "/raw.sqlite"
	rawDB, err := db.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rawDB.Close() })

	_, err = New(rawDB, NewConfig(Options{}), checks.LocalContext{Rasters: raster.TIFF()}, nil)
	assert.ErrorIs(t, err, db.ErrMigrationTooOld)
}

func TestPumpEmptiesStorageWithinTimestep(t *testing.T) {
	chk, modelDB := newTestChecker(t, Options{})
	_, err := modelDB.Exec(`INSERT INTO global_settings
		(id, use_0d_inflow, use_1d_flow, use_2d_flow, epsg_code, nr_timesteps, sim_time_step, kmax, numerical_settings_id)
		VALUES (1, 0, 1, 1, 28992, 100, 30, 4, 1)`)
	require.NoError(t, err)
	_, err = modelDB.Exec(`INSERT INTO numerical_settings (id) VALUES (1)`)
	require.NoError(t, err)
	_, err = modelDB.Exec(`INSERT INTO connection_nodes (id, storage_area, the_geom)
		VALUES (1, 0.64, ?), (2, 600, ?), (3, NULL, ?)`,
		wkbGeom(t, "POINT (0 0)"), wkbGeom(t, "POINT (10 0)"), wkbGeom(t, "POINT (20 0)"))
	require.NoError(t, err)
	// 0.64 m2 of storage drains in well under one 30 s time step at
	// 12500 L/s; 600 m2 does not. A node without storage is open water.
	_, err = modelDB.Exec(`INSERT INTO pumpstations
		(id, type, start_level, lower_stop_level, capacity, connection_node_start_id)
		VALUES (1, 1, 1.0, 0.0, 12500, 1),
		       (2, 1, 1.0, 0.0, 12500, 2),
		       (3, 1, 1.0, 0.0, 12500, 3)`)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, codeIDs(t, chk, checks.Warning, 80))
}

func TestBoundaryConditionObjectCount(t *testing.T) {
	chk, modelDB := newTestChecker(t, Options{})
	_, err := modelDB.Exec(`INSERT INTO connection_nodes (id, the_geom)
		VALUES (1, ?), (2, ?), (3, ?), (4, ?)`,
		wkbGeom(t, "POINT (0 0)"), wkbGeom(t, "POINT (10 0)"),
		wkbGeom(t, "POINT (20 0)"), wkbGeom(t, "POINT (30 0)"))
	require.NoError(t, err)
	_, err = modelDB.Exec(`INSERT INTO channels
		(id, calculation_type, connection_node_start_id, connection_node_end_id, the_geom)
		VALUES (1, 101, 1, 2, ?), (2, 101, 2, 3, ?)`,
		wkbGeom(t, "LINESTRING (0 0, 10 0)"), wkbGeom(t, "LINESTRING (10 0, 20 0)"))
	require.NoError(t, err)
	// Node 4 has no objects, node 2 has two, node 1 has exactly one.
	_, err = modelDB.Exec(`INSERT INTO boundary_conditions_1d
		(id, boundary_type, timeseries, connection_node_id)
		VALUES (1, 1, '0,0.5', 4), (2, 1, '0,0.5', 1), (3, 1, '0,0.5', 2)`)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3}, codeIDs(t, chk, checks.Error, 60))
}

func TestCheckerHonorsContextCancel(t *testing.T) {
	chk, _ := newTestChecker(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chk.Errors(ctx, checks.Info)
	assert.ErrorIs(t, err, context.Canceled)
}
