// Package raster abstracts GeoTIFF inspection behind a small capability
// interface with two interchangeable backends: one driving the GDAL
// command line tools and one reading TIFF tags directly. Both expose
// identical semantics so raster checks behave the same regardless of
// which backend a context was built with.
package raster

import "errors"

// ErrNoData is returned by MinMax when the raster contains zero valid
// (non-nodata, non-NaN) pixels. Callers that only care about "invalid"
// may collapse it with other failures; errors.Is keeps the two
// distinguishable.
var ErrNoData = errors.New("raster has no valid pixels")

// Raster is an open raster file. Metric accessors are only meaningful
// when IsValidGeoTIFF reports true; on an invalid raster they return
// zero values. Close must be called on every Raster, on every path.
type Raster interface {
	Close() error

	// IsValidGeoTIFF reports whether the file parsed as a GeoTIFF at all.
	IsValidGeoTIFF() bool

	// BandCount returns the number of raster bands.
	BandCount() int

	// HasProjection reports whether a coordinate reference system is set.
	HasProjection() bool

	// IsGeographic reports whether the CRS is geographic (lat/lon) rather
	// than projected.
	IsGeographic() bool

	// EPSGCode returns the EPSG code of the CRS, if one could be derived.
	EPSGCode() (int, bool)

	// PixelSize returns the absolute cell size in x and y.
	PixelSize() (dx, dy float64, ok bool)

	// MinMax returns the value range of the first band, excluding nodata
	// pixels. Returns ErrNoData when no valid pixel exists.
	MinMax() (min, max float64, err error)

	// Shape returns the raster dimensions in pixels.
	Shape() (width, height int)
}

// Backend is a pluggable raster implementation. Available is a static
// probe: when it reports false, raster checks degrade to reporting no
// violations instead of failing the run.
type Backend struct {
	Name      string
	Available func() bool
	Open      func(path string) (Raster, error)
}
