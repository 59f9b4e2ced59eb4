package raster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodtools/modelchecker/internal/raster/rastertest"
)

func writeFixture(t *testing.T, o rastertest.Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.tif")
	require.NoError(t, rastertest.WriteGeoTIFF(path, o))
	return path
}

func openFixture(t *testing.T, o rastertest.Options) Raster {
	t.Helper()
	backend := TIFF()
	require.True(t, backend.Available())

	r, err := backend.Open(writeFixture(t, o))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestTIFFMetadata(t *testing.T) {
	r := openFixture(t, rastertest.Options{
		Width:     3,
		Height:    2,
		Values:    []float32{1, 2, 3, 4, 5, 6},
		PixelSize: 0.5,
		EPSG:      28992,
	})

	assert.True(t, r.IsValidGeoTIFF())
	assert.Equal(t, 1, r.BandCount())

	width, height := r.Shape()
	assert.Equal(t, 3, width)
	assert.Equal(t, 2, height)

	dx, dy, ok := r.PixelSize()
	require.True(t, ok)
	assert.InDelta(t, 0.5, dx, 1e-12)
	assert.InDelta(t, 0.5, dy, 1e-12)

	assert.True(t, r.HasProjection())
	assert.False(t, r.IsGeographic())
	epsg, ok := r.EPSGCode()
	require.True(t, ok)
	assert.Equal(t, 28992, epsg)
}

func TestTIFFMinMax(t *testing.T) {
	r := openFixture(t, rastertest.Options{
		Width:  2,
		Height: 2,
		Values: []float32{-3, 0.5, 9, 1},
	})

	min, max, err := r.MinMax()
	require.NoError(t, err)
	assert.InDelta(t, -3, min, 1e-6)
	assert.InDelta(t, 9, max, 1e-6)
}

func TestTIFFMinMaxSkipsNodata(t *testing.T) {
	nodata := -9999.0
	r := openFixture(t, rastertest.Options{
		Width:  2,
		Height: 2,
		Values: []float32{-9999, 0.5, 9, -9999},
		Nodata: &nodata,
	})

	min, max, err := r.MinMax()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, min, 1e-6)
	assert.InDelta(t, 9, max, 1e-6)
}

func TestTIFFMinMaxNoData(t *testing.T) {
	nodata := -9999.0
	r := openFixture(t, rastertest.Options{
		Width:  2,
		Height: 1,
		Values: []float32{-9999, -9999},
		Nodata: &nodata,
	})

	_, _, err := r.MinMax()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestTIFFMultipleBands(t *testing.T) {
	r := openFixture(t, rastertest.Options{
		Width:  2,
		Height: 1,
		Values: []float32{1, 2},
		Bands:  2,
	})
	assert.Equal(t, 2, r.BandCount())
}

func TestTIFFGeographic(t *testing.T) {
	r := openFixture(t, rastertest.Options{
		Width:      1,
		Height:     1,
		Values:     []float32{1},
		EPSG:       4326,
		Geographic: true,
	})
	assert.True(t, r.HasProjection())
	assert.True(t, r.IsGeographic())
}

func TestTIFFNoProjection(t *testing.T) {
	r := openFixture(t, rastertest.Options{
		Width:  1,
		Height: 1,
		Values: []float32{1},
	})
	assert.False(t, r.HasProjection())
	_, ok := r.EPSGCode()
	assert.False(t, ok)
	_, _, ok = r.PixelSize()
	assert.False(t, ok)
}

func TestTIFFInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tif")
	require.NoError(t, os.WriteFile(path, []byte("this is not a tiff"), 0o644))

	r, err := TIFF().Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.False(t, r.IsValidGeoTIFF())
}

func TestTIFFMissingFile(t *testing.T) {
	r, err := TIFF().Open(filepath.Join(t.TempDir(), "missing.tif"))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.False(t, r.IsValidGeoTIFF())
}
