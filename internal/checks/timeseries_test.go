package checks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodtools/modelchecker/internal/schema"
)

func TestParseTimeseries(t *testing.T) {
	entries, err := parseTimeseries("0,-0.5\n60,1.4\n")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(0), entries[0].timestep)
	assert.InDelta(t, -0.5, entries[0].value, 1e-12)
	assert.Equal(t, int64(60), entries[1].timestep)

	_, err = parseTimeseries("0,-0.5\nbroken")
	assert.Error(t, err)
	_, err = parseTimeseries("1.5,2")
	assert.Error(t, err)
	_, err = parseTimeseries("0,abc")
	assert.Error(t, err)
}

func insertBoundary(t *testing.T, c *Context, id int, timeseries string) {
	t.Helper()
	exec(t, c, `INSERT INTO boundary_conditions_1d (id, boundary_type, timeseries, connection_node_id)
		VALUES (?, 1, ?, ?)`, id, timeseries, id)
}

func TestTimeseriesRowCheck(t *testing.T) {
	c := testContext(t)
	insertBoundary(t, c, 1, "0,1\n60,2")
	insertBoundary(t, c, 2, "0;1")
	insertBoundary(t, c, 3, "\n")

	chk := TimeseriesRow(1201, schema.C("boundary_conditions_1d", "timeseries"))
	assert.Equal(t, []int64{2, 3}, invalidIDs(t, chk, c))
}

func TestTimeseriesIncreasingCheck(t *testing.T) {
	c := testContext(t)
	insertBoundary(t, c, 1, "0,1\n60,2\n120,3")
	insertBoundary(t, c, 2, "0,1\n60,2\n60,3")
	insertBoundary(t, c, 3, "not,a,timeseries")

	chk := TimeseriesIncreasing(1202, schema.C("boundary_conditions_1d", "timeseries"))
	// Unparsable timeseries belong to the row check.
	assert.Equal(t, []int64{2}, invalidIDs(t, chk, c))
}

func TestTimeseriesStartsAtZeroCheck(t *testing.T) {
	c := testContext(t)
	insertBoundary(t, c, 1, "0,1\n60,2")
	insertBoundary(t, c, 2, "30,1\n60,2")

	chk := TimeseriesStartsAtZero(1203, schema.C("boundary_conditions_1d", "timeseries"))
	assert.Equal(t, Warning, chk.Level())
	assert.Equal(t, []int64{2}, invalidIDs(t, chk, c))
}

func TestTimeseriesEqualTimestepsCheck(t *testing.T) {
	c := testContext(t)
	insertBoundary(t, c, 1, "0,1\n60,2")
	insertBoundary(t, c, 2, "0,5\n60,6")
	insertBoundary(t, c, 3, "0,5\n30,6")
	insertBoundary(t, c, 4, "0,5")

	chk := TimeseriesEqualTimesteps(1204, schema.C("boundary_conditions_1d", "timeseries"))
	assert.Equal(t, []int64{3, 4}, invalidIDs(t, chk, c))
}
