package checks

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodtools/modelchecker/internal/raster"
	"github.com/floodtools/modelchecker/internal/raster/rastertest"
	"github.com/floodtools/modelchecker/internal/schema"
)

// rasterModel builds a context whose model references dem.tif in a temp
// directory, written with the given fixture options.
func rasterModel(t *testing.T, o rastertest.Options) *Context {
	t.Helper()
	c := testContext(t)

	dir := t.TempDir()
	require.NoError(t, rastertest.WriteGeoTIFF(filepath.Join(dir, "dem.tif"), o))

	exec(t, c, `INSERT INTO global_settings
		(id, use_0d_inflow, use_1d_flow, use_2d_flow, epsg_code, grid_space, nr_timesteps, sim_time_step, kmax, numerical_settings_id, dem_file)
		VALUES (1, 0, 1, 1, 28992, 2.0, 100, 30, 4, 1, 'dem.tif')`)

	c.Raster = LocalContext{BasePath: dir, Rasters: raster.TIFF()}
	return c
}

func demColumn() *schema.Column { return schema.C("global_settings", "dem_file") }

func TestRasterExistsCheck(t *testing.T) {
	c := rasterModel(t, rastertest.Options{Width: 1, Height: 1, Values: []float32{1}})
	exec(t, c, `INSERT INTO global_settings
		(id, use_0d_inflow, use_1d_flow, use_2d_flow, epsg_code, nr_timesteps, sim_time_step, kmax, numerical_settings_id, dem_file)
		VALUES (2, 0, 1, 1, 28992, 100, 30, 4, 1, 'missing.tif'),
		       (3, 0, 1, 1, 28992, 100, 30, 4, 1, NULL)`)

	chk := RasterExists(801, demColumn())
	assert.Equal(t, []int64{2}, invalidIDs(t, chk, c))
}

func TestRasterIsValidCheck(t *testing.T) {
	c := rasterModel(t, rastertest.Options{Width: 1, Height: 1, Values: []float32{1}})
	assert.Empty(t, invalidIDs(t, RasterIsValid(802, demColumn()), c))
}

func TestRasterHasOneBandCheck(t *testing.T) {
	c := rasterModel(t, rastertest.Options{Width: 1, Height: 1, Values: []float32{1}, Bands: 2})
	assert.Equal(t, []int64{1}, invalidIDs(t, RasterHasOneBand(803, demColumn()), c))
}

func TestRasterProjectionChecks(t *testing.T) {
	t.Run("no_crs", func(t *testing.T) {
		c := rasterModel(t, rastertest.Options{Width: 1, Height: 1, Values: []float32{1}})
		assert.Equal(t, []int64{1}, invalidIDs(t, RasterHasProjection(804, demColumn()), c))
		assert.Empty(t, invalidIDs(t, RasterIsProjected(805, demColumn()), c))
	})

	t.Run("geographic_crs", func(t *testing.T) {
		c := rasterModel(t, rastertest.Options{
			Width: 1, Height: 1, Values: []float32{1}, EPSG: 4326, Geographic: true,
		})
		assert.Empty(t, invalidIDs(t, RasterHasProjection(804, demColumn()), c))
		assert.Equal(t, []int64{1}, invalidIDs(t, RasterIsProjected(805, demColumn()), c))
	})
}

func TestRasterHasMatchingEPSGCheck(t *testing.T) {
	c := rasterModel(t, rastertest.Options{
		Width: 1, Height: 1, Values: []float32{1}, EPSG: 4326,
	})
	// Model declares 28992, raster carries 4326.
	assert.Equal(t, []int64{1}, invalidIDs(t, RasterHasMatchingEPSG(806, demColumn()), c))
}

func TestRasterHasMatchingEPSGCheckUnderivableCode(t *testing.T) {
	// The GeoTIFF user-defined code 32767 declares a projection without
	// naming an EPSG code, so no comparison is possible.
	c := rasterModel(t, rastertest.Options{
		Width: 1, Height: 1, Values: []float32{1}, EPSG: 32767,
	})
	assert.Empty(t, invalidIDs(t, RasterHasProjection(804, demColumn()), c))
	assert.Equal(t, []int64{1}, invalidIDs(t, RasterHasMatchingEPSG(806, demColumn()), c))
}

func TestRasterHasMatchingEPSGCheckNoProjection(t *testing.T) {
	// Without any projection the mismatch check stays quiet; the
	// projection check owns that failure.
	c := rasterModel(t, rastertest.Options{
		Width: 1, Height: 1, Values: []float32{1},
	})
	assert.Equal(t, []int64{1}, invalidIDs(t, RasterHasProjection(804, demColumn()), c))
	assert.Empty(t, invalidIDs(t, RasterHasMatchingEPSG(806, demColumn()), c))
}

func TestRasterSquareCellsCheck(t *testing.T) {
	c := rasterModel(t, rastertest.Options{
		Width: 1, Height: 1, Values: []float32{1}, PixelSize: 0.5, PixelSizeY: 0.25,
	})
	assert.Equal(t, []int64{1}, invalidIDs(t, RasterSquareCells(807, 7, demColumn()), c))
}

func TestRasterGridSizeCheck(t *testing.T) {
	// grid_space 2.0 is an even multiple of cell size 0.5.
	c := rasterModel(t, rastertest.Options{
		Width: 1, Height: 1, Values: []float32{1}, PixelSize: 0.5,
	})
	assert.Empty(t, invalidIDs(t, RasterGridSize(809, demColumn()), c))

	// grid_space 2.0 is not an even multiple of cell size 0.6.
	c = rasterModel(t, rastertest.Options{
		Width: 1, Height: 1, Values: []float32{1}, PixelSize: 0.6,
	})
	assert.Equal(t, []int64{1}, invalidIDs(t, RasterGridSize(809, demColumn()), c))
}

func TestRasterRangeCheck(t *testing.T) {
	c := rasterModel(t, rastertest.Options{
		Width: 2, Height: 1, Values: []float32{0.5, 2},
	})
	chk := RasterRange(819, demColumn(), Bounds{Min: F(0), Max: F(1)})
	assert.Equal(t, []int64{1}, invalidIDs(t, chk, c))
}

func TestRasterRangeCheckEmptyRasterIsInvalid(t *testing.T) {
	nodata := -9999.0
	c := rasterModel(t, rastertest.Options{
		Width: 1, Height: 1, Values: []float32{-9999}, Nodata: &nodata,
	})
	chk := RasterRange(819, demColumn(), Bounds{Min: F(1)})
	assert.Equal(t, []int64{1}, invalidIDs(t, chk, c))
	assert.Equal(t, "global_settings.dem_file has values <1 or is empty", chk.Description())
}

func TestRasterChecksSkipMissingFiles(t *testing.T) {
	c := testContext(t)
	exec(t, c, `INSERT INTO global_settings
		(id, use_0d_inflow, use_1d_flow, use_2d_flow, epsg_code, nr_timesteps, sim_time_step, kmax, numerical_settings_id, dem_file)
		VALUES (1, 0, 1, 1, 28992, 100, 30, 4, 1, 'missing.tif')`)
	c.Raster = LocalContext{BasePath: t.TempDir(), Rasters: raster.TIFF()}

	// Only the existence check reports a missing raster.
	assert.Empty(t, invalidIDs(t, RasterIsValid(802, demColumn()), c))
	assert.Empty(t, invalidIDs(t, RasterHasOneBand(803, demColumn()), c))
}

func TestRasterChecksSkipWhenBackendUnavailable(t *testing.T) {
	c := testContext(t)
	exec(t, c, `INSERT INTO global_settings
		(id, use_0d_inflow, use_1d_flow, use_2d_flow, epsg_code, nr_timesteps, sim_time_step, kmax, numerical_settings_id, dem_file)
		VALUES (1, 0, 1, 1, 28992, 100, 30, 4, 1, 'dem.tif')`)
	unavailable := raster.Backend{
		Name:      "none",
		Available: func() bool { return false },
		Open:      func(string) (raster.Raster, error) { panic("must not open") },
	}
	c.Raster = LocalContext{BasePath: t.TempDir(), Rasters: unavailable}

	assert.Empty(t, invalidIDs(t, RasterIsValid(802, demColumn()), c))
	assert.Equal(t, []int64{1}, invalidIDs(t, RasterBackendAvailable(840), c))
}

func TestServerContext(t *testing.T) {
	dir := t.TempDir()
	url := filepath.Join(dir, "dem.tif")
	require.NoError(t, rastertest.WriteGeoTIFF(url, rastertest.Options{
		Width: 1, Height: 1, Values: []float32{1},
	}))

	ctx := ServerContext{
		AvailableRasters: map[string]string{"dem_file": url},
		Rasters:          raster.TIFF(),
	}
	resolved, ok := ctx.Resolve("dem_file", "whatever_the_model_says.tif")
	require.True(t, ok)
	assert.Equal(t, url, resolved)

	_, ok = ctx.Resolve("frict_coef_file", "x.tif")
	assert.False(t, ok)
	assert.Equal(t, 1, ctx.RowLimit())
}

func TestServerContextRowLimit(t *testing.T) {
	c := testContext(t)
	exec(t, c, `INSERT INTO global_settings
		(id, use_0d_inflow, use_1d_flow, use_2d_flow, epsg_code, nr_timesteps, sim_time_step, kmax, numerical_settings_id, dem_file)
		VALUES (1, 0, 1, 1, 28992, 100, 30, 4, 1, 'a.tif'),
		       (2, 0, 1, 1, 28992, 100, 30, 4, 1, 'b.tif')`)
	c.Raster = ServerContext{AvailableRasters: nil, Rasters: raster.TIFF()}

	// Neither row resolves, and only the first row is inspected at all.
	chk := RasterExists(801, demColumn())
	assert.Equal(t, []int64{1}, invalidIDs(t, chk, c))
}
