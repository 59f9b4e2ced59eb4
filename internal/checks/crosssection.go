package checks

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/floodtools/modelchecker/internal/schema"
)

// Configuration is the open/closed classification of a cross-section.
type Configuration string

const (
	Open   Configuration = "open"
	Closed Configuration = "closed"
)

// ParseFloatList parses a space-separated list of floats, as stored in
// the width and height columns of tabulated cross-sections.
func ParseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, " ")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float list: %w", err)
		}
		out[i] = v
	}
	return out, nil
}

// Classify derives the maximum width, maximum height and open/closed
// configuration of a cross-section profile. Missing lists default to [0]
// so the arithmetic cannot fail; a dedicated check flags missing values
// separately. A nil maxHeight means height is not applicable (open
// rectangle). Unknown shapes return an empty configuration.
func Classify(shape schema.CrossSectionShape, widths, heights []float64) (maxWidth, maxHeight *float64, configuration Configuration) {
	if len(widths) == 0 {
		widths = []float64{0}
	}
	if len(heights) == 0 {
		heights = []float64{0}
	}

	switch shape {
	case schema.ClosedRectangle:
		return F(maxOf(widths)), F(maxOf(heights)), Closed

	case schema.Rectangle:
		return F(maxOf(widths)), nil, Open

	case schema.Circle:
		// The simulation overwrites any supplied height with the width.
		w := maxOf(widths)
		return F(w), F(w), Closed

	case schema.Egg, schema.InvertedEgg:
		// The simulation overwrites any supplied height with 1.5x width.
		w := maxOf(widths)
		return F(w), F(1.5 * w), Closed

	case schema.TabulatedRectangle, schema.TabulatedTrapezium:
		configuration = Open
		if widths[len(widths)-1] == 0 {
			configuration = Closed
		}
		return F(maxOf(widths)), F(maxOf(heights)), configuration

	case schema.TabulatedYZ:
		// Without the rounding, floating-point noise leaks into the
		// reported extents.
		w := round9(maxOf(widths) - minOf(widths))
		h := round9(maxOf(heights) - minOf(heights))
		configuration = Open
		if widths[0] == widths[len(widths)-1] && heights[0] == heights[len(heights)-1] {
			configuration = Closed
		}
		return F(w), F(h), configuration
	}

	return nil, nil, ""
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func round9(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// inUseDefinitions scopes cross-section definition checks to definitions
// actually referenced by a location or structure.
const inUseDefinitions = `id IN (
	SELECT definition_id FROM cross_section_locations
	UNION ALL SELECT cross_section_definition_id FROM pipes
	UNION ALL SELECT cross_section_definition_id FROM culverts
	UNION ALL SELECT cross_section_definition_id FROM weirs
	UNION ALL SELECT cross_section_definition_id FROM orifices
)`

// CrossSectionBase carries the shape scoping shared by the definition
// checks.
type CrossSectionBase struct {
	BaseCheck
	shapes []schema.CrossSectionShape
}

// Shapes restricts a cross-section check to the given shapes.
func newCrossSectionBase(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) CrossSectionBase {
	return CrossSectionBase{newBase(code, column, opts...), shapes}
}

func (c *CrossSectionBase) shapeMsg() string {
	if c.shapes == nil {
		return "{all}"
	}
	parts := make([]string, len(c.shapes))
	for i, s := range c.shapes {
		parts[i] = strconv.Itoa(int(s))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// scope combines in-use filtering, the shape filter and an extra
// predicate.
func (c *CrossSectionBase) scope(extra Cond) Cond {
	cond := Where(inUseDefinitions)
	if c.shapes != nil {
		placeholders := make([]string, len(c.shapes))
		args := make([]any, len(c.shapes))
		for i, s := range c.shapes {
			placeholders[i] = "?"
			args[i] = int(s)
		}
		cond = cond.And(Where("shape IN ("+strings.Join(placeholders, ", ")+")", args...))
	}
	return cond.And(extra)
}

// records fetches id, shape, width and height for the scoped rows.
func (c *CrossSectionBase) records(ctx context.Context, chk *Context, extra Cond) ([]Row, error) {
	return c.invalidRows(ctx, chk.DB, []string{"shape", "width", "height"}, c.scope(extra))
}

func notEmpty(col string) Cond {
	return Where(col + " IS NOT NULL AND " + col + " != ''")
}

// columnFloats parses the check's column value of a row as a float list.
func columnFloats(row Row, name string) ([]float64, bool) {
	s, ok := row.valueString(name)
	if !ok {
		return nil, false
	}
	values, err := ParseFloatList(s)
	if err != nil {
		return nil, false
	}
	return values, true
}

// CrossSectionNullCheck flags definitions whose width or height is NULL
// or empty.
type CrossSectionNullCheck struct {
	CrossSectionBase
}

func CrossSectionNull(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionNullCheck {
	return &CrossSectionNullCheck{newCrossSectionBase(code, column, shapes, opts...)}
}

func (c *CrossSectionNullCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.invalidRows(ctx, chk.DB, nil,
		c.scope(Where(c.column.Name+" IS NULL OR "+c.column.Name+" = ''")))
}

func (c *CrossSectionNullCheck) Description() string {
	return c.describe(fmt.Sprintf("%s cannot be null or empty for shapes %s", c.columnName(), c.shapeMsg()))
}

// CrossSectionExpectEmptyCheck flags definitions whose width or height
// is filled in where the shape does not use it.
type CrossSectionExpectEmptyCheck struct {
	CrossSectionBase
}

func CrossSectionExpectEmpty(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionExpectEmptyCheck {
	return &CrossSectionExpectEmptyCheck{newCrossSectionBase(code, column, shapes, opts...)}
}

func (c *CrossSectionExpectEmptyCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.invalidRows(ctx, chk.DB, nil, c.scope(notEmpty(c.column.Name)))
}

func (c *CrossSectionExpectEmptyCheck) Description() string {
	return c.describe(fmt.Sprintf("%s should be null or empty for shapes %s", c.columnName(), c.shapeMsg()))
}

// CrossSectionFloatCheck flags definitions whose width or height is not
// a valid non-negative float.
type CrossSectionFloatCheck struct {
	CrossSectionBase
}

func CrossSectionFloat(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionFloatCheck {
	return &CrossSectionFloatCheck{newCrossSectionBase(code, column, shapes, opts...)}
}

func (c *CrossSectionFloatCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty(c.column.Name))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		s, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionFloatCheck) Description() string {
	return c.describe(fmt.Sprintf("%s should be a positive number for shapes %s", c.columnName(), c.shapeMsg()))
}

// CrossSectionGreaterZeroCheck flags definitions whose width or height
// is zero or negative. Unparsable values are another check's concern.
type CrossSectionGreaterZeroCheck struct {
	CrossSectionBase
}

func CrossSectionGreaterZero(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionGreaterZeroCheck {
	return &CrossSectionGreaterZeroCheck{newCrossSectionBase(code, column, shapes, opts...)}
}

func (c *CrossSectionGreaterZeroCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty(c.column.Name))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		s, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		if v <= 0 {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionGreaterZeroCheck) Description() string {
	return c.describe(fmt.Sprintf("%s should be greater than zero for shapes %s", c.columnName(), c.shapeMsg()))
}

// CrossSectionFloatListCheck flags tabulated definitions whose list is
// not space-separated floats.
type CrossSectionFloatListCheck struct {
	CrossSectionBase
}

func CrossSectionFloatList(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionFloatListCheck {
	return &CrossSectionFloatListCheck{newCrossSectionBase(code, column, shapes, opts...)}
}

func (c *CrossSectionFloatListCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty(c.column.Name))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		s, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		if _, err := ParseFloatList(s); err != nil {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionFloatListCheck) Description() string {
	return c.describe(fmt.Sprintf("%s should contain a space separated list of numbers for shapes %s", c.columnName(), c.shapeMsg()))
}

// CrossSectionEqualElementsCheck flags tabulated definitions with a
// different number of width and height elements.
type CrossSectionEqualElementsCheck struct {
	CrossSectionBase
}

func CrossSectionEqualElements(code int, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionEqualElementsCheck {
	return &CrossSectionEqualElementsCheck{
		newCrossSectionBase(code, schema.C("cross_section_definitions", "width"), shapes, opts...),
	}
}

func (c *CrossSectionEqualElementsCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty("width").And(notEmpty("height")))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		widths, okW := columnFloats(row, "width")
		heights, okH := columnFloats(row, "height")
		if !okW || !okH {
			continue
		}
		if len(widths) != len(heights) {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionEqualElementsCheck) Description() string {
	return c.describe(fmt.Sprintf("%s width and height should have an equal number of elements for shapes %s", c.column.Table, c.shapeMsg()))
}

// CrossSectionIncreasingCheck flags tabulated definitions whose list is
// not monotonically increasing.
type CrossSectionIncreasingCheck struct {
	CrossSectionBase
}

func CrossSectionIncreasing(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionIncreasingCheck {
	return &CrossSectionIncreasingCheck{newCrossSectionBase(code, column, shapes, opts...)}
}

func (c *CrossSectionIncreasingCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty(c.column.Name))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		values, ok := columnFloats(row, c.column.Name)
		if !ok {
			continue
		}
		for i := 1; i < len(values); i++ {
			if values[i-1] > values[i] {
				invalid = append(invalid, row)
				break
			}
		}
	}
	return invalid, nil
}

func (c *CrossSectionIncreasingCheck) Description() string {
	return c.describe(fmt.Sprintf("%s should be monotonically increasing for shapes %s. Maybe the width and height have been interchanged?", c.columnName(), c.shapeMsg()))
}

// CrossSectionFirstElementZeroCheck flags tabulated definitions that do
// not start at height 0.
type CrossSectionFirstElementZeroCheck struct {
	CrossSectionBase
}

func CrossSectionFirstElementZero(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionFirstElementZeroCheck {
	return &CrossSectionFirstElementZeroCheck{newCrossSectionBase(code, column, shapes, opts...)}
}

func (c *CrossSectionFirstElementZeroCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty(c.column.Name))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		values, ok := columnFloats(row, c.column.Name)
		if !ok || len(values) == 0 {
			continue
		}
		if math.Abs(values[0]) != 0 {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionFirstElementZeroCheck) Description() string {
	return c.describe(fmt.Sprintf("The first element of %s should equal 0 for shapes %s. Note that heights are relative to 'reference_level'.", c.columnName(), c.shapeMsg()))
}

// CrossSectionFirstElementNonZeroCheck flags tabulated rectangles that
// start with a 0 width.
type CrossSectionFirstElementNonZeroCheck struct {
	CrossSectionBase
}

func CrossSectionFirstElementNonZero(code int, column *schema.Column, shapes []schema.CrossSectionShape, opts ...Option) *CrossSectionFirstElementNonZeroCheck {
	return &CrossSectionFirstElementNonZeroCheck{newCrossSectionBase(code, column, shapes, opts...)}
}

func (c *CrossSectionFirstElementNonZeroCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty(c.column.Name))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		values, ok := columnFloats(row, c.column.Name)
		if !ok || len(values) == 0 {
			continue
		}
		if math.Abs(values[0]) <= 0 {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionFirstElementNonZeroCheck) Description() string {
	return c.describe(fmt.Sprintf("The first element of %s must be larger than 0 for tabulated rectangle shapes. Consider using tabulated trapezium.", c.columnName()))
}

// CrossSectionYZHeightCheck flags YZ profiles whose height list has
// negative elements or does not include 0.
type CrossSectionYZHeightCheck struct {
	CrossSectionBase
}

func CrossSectionYZHeight(code int, column *schema.Column, opts ...Option) *CrossSectionYZHeightCheck {
	return &CrossSectionYZHeightCheck{
		newCrossSectionBase(code, column, []schema.CrossSectionShape{schema.TabulatedYZ}, opts...),
	}
}

func (c *CrossSectionYZHeightCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty(c.column.Name))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		values, ok := columnFloats(row, c.column.Name)
		if !ok || len(values) == 0 {
			continue
		}
		hasZero := false
		hasNegative := false
		for _, v := range values {
			if v < 0 {
				hasNegative = true
			}
			if v == 0 {
				hasZero = true
			}
		}
		if hasNegative || !hasZero {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionYZHeightCheck) Description() string {
	return c.describe(fmt.Sprintf("%s for YZ profiles should include 0.0 and should not include negative values.", c.columnName()))
}

// CrossSectionYZCoordinateCountCheck flags YZ profiles with fewer than 3
// coordinates (excluding a closing coordinate).
type CrossSectionYZCoordinateCountCheck struct {
	CrossSectionBase
}

func CrossSectionYZCoordinateCount(code int, opts ...Option) *CrossSectionYZCoordinateCountCheck {
	return &CrossSectionYZCoordinateCountCheck{
		newCrossSectionBase(code, schema.C("cross_section_definitions", "width"),
			[]schema.CrossSectionShape{schema.TabulatedYZ}, opts...),
	}
}

func (c *CrossSectionYZCoordinateCountCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty("width").And(notEmpty("height")))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		widths, okW := columnFloats(row, "width")
		heights, okH := columnFloats(row, "height")
		if !okW || !okH || len(widths) == 0 || len(widths) != len(heights) {
			continue
		}
		isClosed := widths[0] == widths[len(widths)-1] && heights[0] == heights[len(heights)-1]
		minCount := 3
		if isClosed {
			minCount = 4
		}
		if len(heights) < minCount {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionYZCoordinateCountCheck) Description() string {
	return c.describe(fmt.Sprintf("%s width and height should contain at least 3 coordinates (excluding closing coordinate) for YZ profiles", c.column.Table))
}

// CrossSectionYZIncreasingWidthIfOpenCheck flags open YZ profiles whose
// widths are not strictly increasing.
type CrossSectionYZIncreasingWidthIfOpenCheck struct {
	CrossSectionBase
}

func CrossSectionYZIncreasingWidthIfOpen(code int, opts ...Option) *CrossSectionYZIncreasingWidthIfOpenCheck {
	return &CrossSectionYZIncreasingWidthIfOpenCheck{
		newCrossSectionBase(code, schema.C("cross_section_definitions", "width"),
			[]schema.CrossSectionShape{schema.TabulatedYZ}, opts...),
	}
}

func (c *CrossSectionYZIncreasingWidthIfOpenCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty("width").And(notEmpty("height")))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		widths, okW := columnFloats(row, "width")
		heights, okH := columnFloats(row, "height")
		if !okW || !okH || len(widths) == 0 || len(heights) == 0 {
			continue
		}
		if widths[0] == widths[len(widths)-1] && heights[0] == heights[len(heights)-1] {
			continue // closed profile
		}
		for i := 1; i < len(widths); i++ {
			if widths[i-1] >= widths[i] {
				invalid = append(invalid, row)
				break
			}
		}
	}
	return invalid, nil
}

func (c *CrossSectionYZIncreasingWidthIfOpenCheck) Description() string {
	return c.describe(fmt.Sprintf("%s should be strictly increasing for open YZ profiles. Perhaps this is actually a closed profile?", c.columnName()))
}

// MinimumDiameter is the smallest cross-section extent the solver
// handles reliably.
const MinimumDiameter = 0.1

// CrossSectionMinimumDiameterCheck flags cross-sections that are too
// small: closed profiles need both extents >= MinimumDiameter, open
// profiles only the width.
type CrossSectionMinimumDiameterCheck struct {
	CrossSectionBase
}

func CrossSectionMinimumDiameter(code int, opts ...Option) *CrossSectionMinimumDiameterCheck {
	return &CrossSectionMinimumDiameterCheck{
		newCrossSectionBase(code, schema.C("cross_section_definitions", "id"), nil, opts...),
	}
}

func (c *CrossSectionMinimumDiameterCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.records(ctx, chk, notEmpty("width"))
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		widths, ok := columnFloats(row, "width")
		if !ok {
			continue
		}
		var heights []float64
		if s, ok := row.valueString("height"); ok && s != "" {
			heights, ok = parseOrNil(s)
			if !ok {
				continue
			}
		}
		shape, ok := row.valueInt("shape")
		if !ok {
			continue
		}

		maxWidth, maxHeight, configuration := Classify(schema.CrossSectionShape(shape), widths, heights)
		switch configuration {
		case Closed:
			if *maxHeight < MinimumDiameter || *maxWidth < MinimumDiameter {
				invalid = append(invalid, row)
			}
		case Open:
			// Height needs no checking on an open cross-section.
			if *maxWidth < MinimumDiameter {
				invalid = append(invalid, row)
			}
		}
	}
	return invalid, nil
}

func parseOrNil(s string) ([]float64, bool) {
	values, err := ParseFloatList(s)
	if err != nil {
		return nil, false
	}
	return values, true
}

func (c *CrossSectionMinimumDiameterCheck) Description() string {
	return c.describe(fmt.Sprintf("cross_section_definitions.width and/or height should probably be at least %v m", MinimumDiameter))
}
