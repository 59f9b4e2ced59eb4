package checks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/floodtools/modelchecker/internal/raster"
	"github.com/floodtools/modelchecker/internal/schema"
)

// RasterContext supplies the raster checks with a way to locate and open
// the rasters a model references. Paths stored in the model are relative
// to the model file; a server run instead maps raster roles to URLs.
type RasterContext interface {
	// Resolve maps a stored raster reference to an openable path. ok is
	// false when the raster is not present; only RasterExists reports
	// that, every other raster check skips the row.
	Resolve(columnName, value string) (path string, ok bool)
	Backend() raster.Backend
	// RowLimit caps how many rows per raster column a run inspects.
	// Zero means no limit.
	RowLimit() int
}

// LocalContext resolves raster references against the filesystem,
// relative to the directory holding the model database.
type LocalContext struct {
	BasePath string
	Rasters  raster.Backend
}

func (c LocalContext) Resolve(columnName, value string) (string, bool) {
	path := value
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.BasePath, path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (c LocalContext) Backend() raster.Backend { return c.Rasters }
func (c LocalContext) RowLimit() int           { return 0 }

// ServerContext resolves raster references through a catalog of URLs
// keyed by raster role (the column name). A server run has exactly one
// model, so at most one row per raster column is inspected.
type ServerContext struct {
	AvailableRasters map[string]string
	Rasters          raster.Backend
}

func (c ServerContext) Resolve(columnName, value string) (string, bool) {
	url, ok := c.AvailableRasters[columnName]
	return url, ok
}

func (c ServerContext) Backend() raster.Backend { return c.Rasters }
func (c ServerContext) RowLimit() int           { return 1 }

// BaseRasterCheck scopes a check to rows that reference a raster in its
// column and handles resolving and opening them.
type BaseRasterCheck struct {
	BaseCheck
}

func newRasterBase(code int, column *schema.Column, opts ...Option) BaseRasterCheck {
	return BaseRasterCheck{newBase(code, column, opts...)}
}

func (c *BaseRasterCheck) referencingRows(ctx context.Context, chk *Context, extraColumns []string) ([]Row, error) {
	rows, err := c.invalidRows(ctx, chk.DB, extraColumns, notEmpty(c.column.Name))
	if err != nil {
		return nil, err
	}
	if limit := chk.Raster.RowLimit(); limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// eachRaster opens the raster referenced by each scoped row and calls fn
// with it. Rows whose raster cannot be resolved are skipped. The raster
// is closed after fn returns.
func (c *BaseRasterCheck) eachRaster(ctx context.Context, chk *Context, extraColumns []string, fn func(row Row, r raster.Raster) (bool, error)) ([]Row, error) {
	backend := chk.Raster.Backend()
	if !backend.Available() {
		return nil, nil
	}
	rows, err := c.referencingRows(ctx, chk, extraColumns)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		value, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		path, ok := chk.Raster.Resolve(c.column.Name, value)
		if !ok {
			continue
		}
		r, err := backend.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open raster %s: %w", path, err)
		}
		bad, err := fn(row, r)
		r.Close()
		if err != nil {
			return nil, err
		}
		if bad {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

// eachValidRaster is eachRaster restricted to files that parsed as
// GeoTIFFs; RasterIsValid owns the flagging of broken files.
func (c *BaseRasterCheck) eachValidRaster(ctx context.Context, chk *Context, extraColumns []string, fn func(row Row, r raster.Raster) (bool, error)) ([]Row, error) {
	return c.eachRaster(ctx, chk, extraColumns, func(row Row, r raster.Raster) (bool, error) {
		if !r.IsValidGeoTIFF() {
			return false, nil
		}
		return fn(row, r)
	})
}

// RasterExistsCheck flags rows referencing a raster that cannot be
// resolved. Unlike the other raster checks it does not need a backend.
type RasterExistsCheck struct {
	BaseRasterCheck
}

func RasterExists(code int, column *schema.Column, opts ...Option) *RasterExistsCheck {
	return &RasterExistsCheck{newRasterBase(code, column, opts...)}
}

func (c *RasterExistsCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.referencingRows(ctx, chk, nil)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		value, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		if _, ok := chk.Raster.Resolve(c.column.Name, value); !ok {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *RasterExistsCheck) Description() string {
	return c.describe(fmt.Sprintf("The file in %s is not present", c.columnName()))
}

// RasterIsValidCheck flags rasters that are not readable GeoTIFF files.
type RasterIsValidCheck struct {
	BaseRasterCheck
}

func RasterIsValid(code int, column *schema.Column, opts ...Option) *RasterIsValidCheck {
	return &RasterIsValidCheck{newRasterBase(code, column, opts...)}
}

func (c *RasterIsValidCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.eachRaster(ctx, chk, nil, func(row Row, r raster.Raster) (bool, error) {
		return !r.IsValidGeoTIFF(), nil
	})
}

func (c *RasterIsValidCheck) Description() string {
	return c.describe(fmt.Sprintf("The file in %s is not a valid GeoTIFF file", c.columnName()))
}

// RasterHasOneBandCheck flags rasters with more than one band.
type RasterHasOneBandCheck struct {
	BaseRasterCheck
}

func RasterHasOneBand(code int, column *schema.Column, opts ...Option) *RasterHasOneBandCheck {
	return &RasterHasOneBandCheck{newRasterBase(code, column, opts...)}
}

func (c *RasterHasOneBandCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.eachValidRaster(ctx, chk, nil, func(row Row, r raster.Raster) (bool, error) {
		return r.BandCount() != 1, nil
	})
}

func (c *RasterHasOneBandCheck) Description() string {
	return c.describe(fmt.Sprintf("The file in %s has multiple or no bands.", c.columnName()))
}

// RasterHasProjectionCheck flags rasters without a coordinate reference
// system.
type RasterHasProjectionCheck struct {
	BaseRasterCheck
}

func RasterHasProjection(code int, column *schema.Column, opts ...Option) *RasterHasProjectionCheck {
	return &RasterHasProjectionCheck{newRasterBase(code, column, opts...)}
}

func (c *RasterHasProjectionCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.eachValidRaster(ctx, chk, nil, func(row Row, r raster.Raster) (bool, error) {
		return !r.HasProjection(), nil
	})
}

func (c *RasterHasProjectionCheck) Description() string {
	return c.describe(fmt.Sprintf("The file in %s has no CRS.", c.columnName()))
}

// RasterIsProjectedCheck flags rasters in a geographic (lat/lon) CRS.
type RasterIsProjectedCheck struct {
	BaseRasterCheck
}

func RasterIsProjected(code int, column *schema.Column, opts ...Option) *RasterIsProjectedCheck {
	return &RasterIsProjectedCheck{newRasterBase(code, column, opts...)}
}

func (c *RasterIsProjectedCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.eachValidRaster(ctx, chk, nil, func(row Row, r raster.Raster) (bool, error) {
		return r.HasProjection() && r.IsGeographic(), nil
	})
}

func (c *RasterIsProjectedCheck) Description() string {
	return c.describe(fmt.Sprintf("The file in %s does not use a projected CRS.", c.columnName()))
}

// RasterHasMatchingEPSGCheck flags rasters whose EPSG code cannot be
// derived or differs from the model's epsg_code setting. Rasters
// without any projection are left to RasterHasProjectionCheck.
type RasterHasMatchingEPSGCheck struct {
	BaseRasterCheck
}

func RasterHasMatchingEPSG(code int, column *schema.Column, opts ...Option) *RasterHasMatchingEPSGCheck {
	return &RasterHasMatchingEPSGCheck{newRasterBase(code, column, opts...)}
}

func (c *RasterHasMatchingEPSGCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.eachValidRaster(ctx, chk, []string{"epsg_code"}, func(row Row, r raster.Raster) (bool, error) {
		if !r.HasProjection() {
			return false, nil
		}
		modelEPSG, okModel := row.valueInt("epsg_code")
		rasterEPSG, okRaster := r.EPSGCode()
		if !okModel || !okRaster {
			return true, nil
		}
		return int64(rasterEPSG) != modelEPSG, nil
	})
}

func (c *RasterHasMatchingEPSGCheck) Description() string {
	return c.describe(fmt.Sprintf("The file in %s has no EPSG code or the EPSG code does not match global_settings.epsg_code", c.columnName()))
}

// RasterSquareCellsCheck flags rasters with non-square pixels. Pixel
// sizes are compared after rounding to Decimals decimals.
type RasterSquareCellsCheck struct {
	BaseRasterCheck
	decimals int
}

func RasterSquareCells(code int, decimals int, column *schema.Column, opts ...Option) *RasterSquareCellsCheck {
	return &RasterSquareCellsCheck{newRasterBase(code, column, opts...), decimals}
}

func (c *RasterSquareCellsCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	scale := math.Pow(10, float64(c.decimals))
	return c.eachValidRaster(ctx, chk, nil, func(row Row, r raster.Raster) (bool, error) {
		dx, dy, ok := r.PixelSize()
		if !ok {
			return false, nil
		}
		rx := math.Round(math.Abs(dx)*scale) / scale
		ry := math.Round(math.Abs(dy)*scale) / scale
		return rx != ry, nil
	})
}

func (c *RasterSquareCellsCheck) Description() string {
	return c.describe(fmt.Sprintf("The file in %s has non-square raster cells.", c.columnName()))
}

// RasterGridSizeCheck flags models whose grid_space is not a positive
// even multiple of the raster cell size.
type RasterGridSizeCheck struct {
	BaseRasterCheck
}

func RasterGridSize(code int, column *schema.Column, opts ...Option) *RasterGridSizeCheck {
	return &RasterGridSizeCheck{newRasterBase(code, column, opts...)}
}

func (c *RasterGridSizeCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.eachValidRaster(ctx, chk, []string{"grid_space"}, func(row Row, r raster.Raster) (bool, error) {
		gridSpace, ok := row.valueFloat("grid_space")
		if !ok {
			return false, nil
		}
		dx, _, ok := r.PixelSize()
		if !ok {
			return false, nil
		}
		cell := math.Abs(dx)
		if cell == 0 {
			return false, nil
		}
		halves := gridSpace / (2 * cell)
		return gridSpace <= 0 || !isClose(halves, math.Round(halves)), nil
	})
}

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

func (c *RasterGridSizeCheck) Description() string {
	return c.describe("global_settings.grid_space should be an even multiple of the raster cell size.")
}

// maxPixels is the largest raster the grid generator accepts.
const maxPixels = 5e9

// RasterPixelCountCheck flags rasters with more pixels than the grid
// generator can handle.
type RasterPixelCountCheck struct {
	BaseRasterCheck
	maxPixels float64
}

func RasterPixelCount(code int, column *schema.Column, opts ...Option) *RasterPixelCountCheck {
	return &RasterPixelCountCheck{newRasterBase(code, column, opts...), maxPixels}
}

func (c *RasterPixelCountCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.eachValidRaster(ctx, chk, nil, func(row Row, r raster.Raster) (bool, error) {
		width, height := r.Shape()
		return float64(width)*float64(height) > c.maxPixels, nil
	})
}

func (c *RasterPixelCountCheck) Description() string {
	return c.describe(fmt.Sprintf("The file in %s exceeds %v pixels.", c.columnName(), c.maxPixels))
}

// RasterRangeCheck flags rasters whose pixel values fall outside the
// given bounds, or that contain no data at all.
type RasterRangeCheck struct {
	BaseRasterCheck
	bounds Bounds
}

func RasterRange(code int, column *schema.Column, bounds Bounds, opts ...Option) *RasterRangeCheck {
	if bounds.Min == nil && bounds.Max == nil {
		panic("RasterRange: no bounds given")
	}
	return &RasterRangeCheck{newRasterBase(code, column, opts...), bounds}
}

func (c *RasterRangeCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.eachValidRaster(ctx, chk, nil, func(row Row, r raster.Raster) (bool, error) {
		min, max, err := r.MinMax()
		if errors.Is(err, raster.ErrNoData) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if c.bounds.Min != nil {
			if min < *c.bounds.Min || (c.bounds.MinExclusive && min == *c.bounds.Min) {
				return true, nil
			}
		}
		if c.bounds.Max != nil {
			if max > *c.bounds.Max || (c.bounds.MaxExclusive && max == *c.bounds.Max) {
				return true, nil
			}
		}
		return false, nil
	})
}

func (c *RasterRangeCheck) Description() string {
	return c.describe(fmt.Sprintf("%s has values %s or is empty", c.columnName(), c.bounds.violationString()))
}

// RasterBackendAvailableCheck reports, once per run, that no raster
// backend is available and the raster checks were skipped.
type RasterBackendAvailableCheck struct {
	BaseCheck
}

func RasterBackendAvailable(code int, opts ...Option) *RasterBackendAvailableCheck {
	opts = append([]Option{WithLevel(Warning)}, opts...)
	return &RasterBackendAvailableCheck{
		newBase(code, schema.C("global_settings", "dem_file"), opts...),
	}
}

func (c *RasterBackendAvailableCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	if chk.Raster.Backend().Available() {
		return nil, nil
	}
	return []Row{{Table: c.column.Table, ID: 1}}, nil
}

func (c *RasterBackendAvailableCheck) Description() string {
	return c.describe("no raster reader is available; raster file contents were not checked")
}
