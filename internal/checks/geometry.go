package checks

import (
	"context"
	"fmt"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/floodtools/modelchecker/internal/schema"
)

// GeometryCheck flags rows whose WKB blob does not decode to a valid
// geometry. NULL values are always considered valid.
type GeometryCheck struct {
	BaseCheck
}

// Geometry builds a GeometryCheck; the column must be a geometry column.
func Geometry(code int, column *schema.Column, opts ...Option) *GeometryCheck {
	if column.Geometry == "" {
		panic(fmt.Sprintf("checks: column %s is not a geometry", column.QualifiedName()))
	}
	return &GeometryCheck{newBase(code, column, opts...)}
}

func (c *GeometryCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.invalidRows(ctx, chk.DB, []string{c.column.Name},
		Where(c.column.Name+" IS NOT NULL"))
	if err != nil {
		return nil, err
	}

	var invalid []Row
	for _, row := range rows {
		wkb, ok := row.Values[c.column.Name].([]byte)
		if !ok {
			// Non-blob value in a geometry column; the type check owns that.
			continue
		}
		g, err := geom.UnmarshalWKB(wkb, geom.NoValidate{})
		if err != nil || g.Validate() != nil {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *GeometryCheck) Description() string {
	return c.describe(c.columnName() + " is an invalid geometry")
}

// GeometryTypeCheck flags rows whose geometry class differs from the
// column's declared geometry type. NULL and undecodable values are
// excluded; the geometry validity check owns those.
type GeometryTypeCheck struct {
	BaseCheck
}

// GeometryType builds a GeometryTypeCheck.
func GeometryType(code int, column *schema.Column, opts ...Option) *GeometryTypeCheck {
	if column.Geometry == "" {
		panic(fmt.Sprintf("checks: column %s is not a geometry", column.QualifiedName()))
	}
	return &GeometryTypeCheck{newBase(code, column, opts...)}
}

func (c *GeometryTypeCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.invalidRows(ctx, chk.DB, []string{c.column.Name},
		Where(c.column.Name+" IS NOT NULL"))
	if err != nil {
		return nil, err
	}

	want := expectedGeometryType(c.column.Geometry)

	var invalid []Row
	for _, row := range rows {
		wkb, ok := row.Values[c.column.Name].([]byte)
		if !ok {
			continue
		}
		g, err := geom.UnmarshalWKB(wkb, geom.NoValidate{})
		if err != nil {
			continue
		}
		if g.Type() != want {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *GeometryTypeCheck) Description() string {
	return c.describe(fmt.Sprintf("%s is not of geometry type %s", c.columnName(), c.column.Geometry))
}

func expectedGeometryType(gt schema.GeometryType) geom.GeometryType {
	switch gt {
	case schema.Point:
		return geom.TypePoint
	case schema.LineString:
		return geom.TypeLineString
	case schema.Polygon:
		return geom.TypePolygon
	default:
		panic(fmt.Sprintf("checks: unknown geometry type %q", gt))
	}
}

// rowGeometry decodes the named WKB column of a row, reporting ok false
// for NULL, non-blob or undecodable values. Spatial checks use it to
// skip rows the geometry validity check owns.
func rowGeometry(row Row, name string) (geom.Geometry, bool) {
	wkb, ok := row.Values[name].([]byte)
	if !ok {
		return geom.Geometry{}, false
	}
	g, err := geom.UnmarshalWKB(wkb, geom.NoValidate{})
	if err != nil {
		return geom.Geometry{}, false
	}
	return g, true
}
