package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGDALInvalidRaster(t *testing.T) {
	g := &gdalRaster{}

	assert.False(t, g.IsValidGeoTIFF())
	assert.Equal(t, 0, g.BandCount())
	assert.False(t, g.HasProjection())
	assert.False(t, g.IsGeographic())
	_, _, ok := g.PixelSize()
	assert.False(t, ok)
	_, _, err := g.MinMax()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGDALEPSGCode(t *testing.T) {
	tests := []struct {
		name string
		info gdalInfo
		want int
		ok   bool
	}{
		{
			name: "stac field",
			info: gdalInfo{Stac: gdalStac{EPSG: intPtr(28992)}},
			want: 28992,
			ok:   true,
		},
		{
			name: "wkt2 id node",
			info: gdalInfo{CoordinateSystem: gdalCRS{
				WKT: `PROJCRS["Amersfoort / RD New",ID["EPSG",28992]]`,
			}},
			want: 28992,
			ok:   true,
		},
		{
			name: "wkt1 authority node",
			info: gdalInfo{CoordinateSystem: gdalCRS{
				WKT: `PROJCS["RD New",AUTHORITY["EPSG","28992"]]`,
			}},
			want: 28992,
			ok:   true,
		},
		{
			name: "no code",
			info: gdalInfo{CoordinateSystem: gdalCRS{WKT: `PROJCS["local"]`}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &gdalRaster{info: &tt.info}
			code, ok := g.EPSGCode()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestGDALPixelSize(t *testing.T) {
	g := &gdalRaster{info: &gdalInfo{
		GeoTransform: []float64{0, 0.5, 0, 300000, 0, -0.5},
	}}
	dx, dy, ok := g.PixelSize()
	require.True(t, ok)
	assert.Equal(t, 0.5, dx)
	assert.Equal(t, 0.5, dy)
}

func TestGDALMinMax(t *testing.T) {
	stats := map[string]map[string]string{
		"": {
			"STATISTICS_MINIMUM": "-1.5",
			"STATISTICS_MAXIMUM": "10.25",
		},
	}
	g := &gdalRaster{info: &gdalInfo{Bands: []gdalBand{{Metadata: stats}}}}

	minV, maxV, err := g.MinMax()
	require.NoError(t, err)
	assert.Equal(t, -1.5, minV)
	assert.Equal(t, 10.25, maxV)
}

func TestGDALMinMaxNoPixels(t *testing.T) {
	g := &gdalRaster{
		info:  &gdalInfo{Bands: []gdalBand{{Min: floatPtr(0), Max: floatPtr(1)}}},
		noPix: true,
	}
	_, _, err := g.MinMax()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGDALGeographic(t *testing.T) {
	g := &gdalRaster{info: &gdalInfo{CoordinateSystem: gdalCRS{
		WKT: `GEOGCRS["WGS 84",ID["EPSG",4326]]`,
	}}}
	assert.True(t, g.IsGeographic())
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
