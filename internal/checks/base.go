package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/floodtools/modelchecker/internal/schema"
)

// NotNullCheck flags rows where the column is NULL.
type NotNullCheck struct {
	BaseCheck
}

// NotNull builds a NotNullCheck.
func NotNull(code int, column *schema.Column, opts ...Option) *NotNullCheck {
	return &NotNullCheck{newBase(code, column, opts...)}
}

func (c *NotNullCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return c.invalidRows(ctx, chk.DB, nil, Where(c.column.Name+" IS NULL"))
}

func (c *NotNullCheck) Description() string {
	return c.describe(c.columnName() + " cannot be null")
}

// UniqueCheck flags every row participating in a duplicate value group.
// NULL values are excluded. A composite key flags duplicate tuples.
type UniqueCheck struct {
	BaseCheck
	columns []*schema.Column
}

// Unique builds a single-column UniqueCheck.
func Unique(code int, column *schema.Column, opts ...Option) *UniqueCheck {
	return &UniqueCheck{newBase(code, column, opts...), []*schema.Column{column}}
}

// UniqueTogether builds a composite-key UniqueCheck over columns of one
// table; the first column is the check's identity column.
func UniqueTogether(code int, columns []*schema.Column, opts ...Option) *UniqueCheck {
	if len(columns) == 0 {
		panic("checks: UniqueTogether requires at least one column")
	}
	return &UniqueCheck{newBase(code, columns[0], opts...), columns}
}

func (c *UniqueCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	names := make([]string, len(c.columns))
	notNull := make([]string, len(c.columns))
	for i, col := range c.columns {
		names[i] = col.Name
		notNull[i] = col.Name + " IS NOT NULL"
	}
	tuple := "(" + strings.Join(names, ", ") + ")"

	dupes := fmt.Sprintf(
		"%s IN (SELECT %s FROM %s WHERE %s GROUP BY %s HAVING COUNT(*) > 1)",
		tuple, strings.Join(names, ", "), c.column.Table,
		strings.Join(notNull, " AND "), strings.Join(names, ", "),
	)
	return c.invalidRows(ctx, chk.DB, nil, Where(dupes))
}

func (c *UniqueCheck) Description() string {
	if len(c.columns) > 1 {
		names := make([]string, len(c.columns))
		for i, col := range c.columns {
			names[i] = col.Name
		}
		return c.describe(fmt.Sprintf("%s (%s) should be unique together",
			c.column.Table, strings.Join(names, ", ")))
	}
	return c.describe(c.columnName() + " should be unique")
}

// ForeignKeyCheck flags rows whose non-NULL column value is absent from
// the referenced column.
type ForeignKeyCheck struct {
	BaseCheck
	reference *schema.Column
}

// ForeignKey builds a ForeignKeyCheck from column to reference.
func ForeignKey(code int, column, reference *schema.Column, opts ...Option) *ForeignKeyCheck {
	return &ForeignKeyCheck{newBase(code, column, opts...), reference}
}

func (c *ForeignKeyCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	predicate := Where(fmt.Sprintf(
		"%s IS NOT NULL AND %s NOT IN (SELECT %s FROM %s)",
		c.column.Name, c.column.Name, c.reference.Name, c.reference.Table,
	))
	return c.invalidRows(ctx, chk.DB, nil, predicate)
}

func (c *ForeignKeyCheck) Description() string {
	return c.describe(fmt.Sprintf("%s refers to a non-existing %s",
		c.columnName(), c.reference.QualifiedName()))
}

// TypeCheck flags rows whose stored value's runtime type disagrees with
// the column's declared type, using SQLite's dynamic typeof(). On a
// statically typed backend this check would be a no-op; the model
// database is always SQLite.
type TypeCheck struct {
	BaseCheck
}

// Type builds a TypeCheck.
func Type(code int, column *schema.Column, opts ...Option) *TypeCheck {
	return &TypeCheck{newBase(code, column, opts...)}
}

func (c *TypeCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	predicate := Where(
		fmt.Sprintf("typeof(%s) != ? AND typeof(%s) != 'null'", c.column.Name, c.column.Name),
		string(c.column.Type),
	)
	return c.invalidRows(ctx, chk.DB, nil, predicate)
}

func (c *TypeCheck) Description() string {
	return c.describe(fmt.Sprintf("%s is not of type %s", c.columnName(), c.column.Type))
}

// Bounds configures a RangeCheck. Nil limits are unbounded; a side is
// inclusive unless its exclusive flag is set.
type Bounds struct {
	Min, Max                   *float64
	MinExclusive, MaxExclusive bool
}

// F is shorthand for a float bound.
func F(v float64) *float64 { return &v }

// RangeCheck flags rows outside the configured bounds. NULL values are
// excluded.
type RangeCheck struct {
	BaseCheck
	bounds Bounds
}

// Range builds a RangeCheck.
func Range(code int, column *schema.Column, bounds Bounds, opts ...Option) *RangeCheck {
	if bounds.Min == nil && bounds.Max == nil {
		panic("checks: Range requires at least one bound")
	}
	return &RangeCheck{newBase(code, column, opts...), bounds}
}

func (c *RangeCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	var parts []string
	var args []any
	if c.bounds.Min != nil {
		op := "<"
		if c.bounds.MinExclusive {
			op = "<="
		}
		parts = append(parts, c.column.Name+" "+op+" ?")
		args = append(args, *c.bounds.Min)
	}
	if c.bounds.Max != nil {
		op := ">"
		if c.bounds.MaxExclusive {
			op = ">="
		}
		parts = append(parts, c.column.Name+" "+op+" ?")
		args = append(args, *c.bounds.Max)
	}
	predicate := Where("("+strings.Join(parts, " OR ")+")", args...)
	return c.invalidRows(ctx, chk.DB, nil, predicate)
}

func (c *RangeCheck) Description() string {
	return c.describe(fmt.Sprintf("%s has values %s", c.columnName(), c.bounds.violationString()))
}

// violationString renders the out-of-bounds condition, e.g. "<0 and/or
// >=1" for [0, 1).
func (b Bounds) violationString() string {
	var parts []string
	if b.Min != nil {
		op := "<"
		if b.MinExclusive {
			op = "<="
		}
		parts = append(parts, fmt.Sprintf("%s%v", op, *b.Min))
	}
	if b.Max != nil {
		op := ">"
		if b.MaxExclusive {
			op = ">="
		}
		parts = append(parts, fmt.Sprintf("%s%v", op, *b.Max))
	}
	return strings.Join(parts, " and/or ")
}

// EnumCheck flags rows whose value is not one of the column's declared
// enumeration values. NULL values are excluded.
type EnumCheck struct {
	BaseCheck
}

// Enum builds an EnumCheck; the column must declare an enum set.
func Enum(code int, column *schema.Column, opts ...Option) *EnumCheck {
	if column.Enum == nil {
		panic(fmt.Sprintf("checks: column %s has no enum values", column.QualifiedName()))
	}
	return &EnumCheck{newBase(code, column, opts...)}
}

func (c *EnumCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	placeholders := make([]string, len(c.column.Enum))
	args := make([]any, len(c.column.Enum))
	for i, v := range c.column.Enum {
		placeholders[i] = "?"
		args[i] = v
	}
	predicate := Where(fmt.Sprintf("%s IS NOT NULL AND %s NOT IN (%s)",
		c.column.Name, c.column.Name, strings.Join(placeholders, ", ")), args...)
	return c.invalidRows(ctx, chk.DB, nil, predicate)
}

func (c *EnumCheck) Description() string {
	return c.describe(fmt.Sprintf("%s is not one of %v", c.columnName(), c.column.Enum))
}

// AllEqualCheck flags every row whose value differs from the first row's
// value in natural (id) order. Used on what should be a single global
// settings row, tolerating legacy multi-row data.
type AllEqualCheck struct {
	BaseCheck
}

// AllEqual builds an AllEqualCheck.
func AllEqual(code int, column *schema.Column, opts ...Option) *AllEqualCheck {
	return &AllEqualCheck{newBase(code, column, opts...)}
}

func (c *AllEqualCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	first := fmt.Sprintf("(SELECT %s FROM %s ORDER BY id LIMIT 1)", c.column.Name, c.column.Table)
	predicate := Where(c.column.Name + " IS NOT " + first)
	return c.invalidRows(ctx, chk.DB, []string{c.column.Name}, predicate)
}

func (c *AllEqualCheck) Description() string {
	return c.describe(c.columnName() + " is different from the first record, which will be used")
}

// QueryCheck wraps an arbitrary SELECT identifying the invalid rows
// directly: the escape hatch for one-off cross-table rules. The query's
// first selected column must be the row id, and it must respect the
// check's scoping filter itself (the raw SQL cannot be recomposed).
type QueryCheck struct {
	BaseCheck
	query string
	args  []any
}

// Query builds a QueryCheck against the given column's table.
func Query(code int, column *schema.Column, query string, args []any, opts ...Option) *QueryCheck {
	return &QueryCheck{newBase(code, column, opts...), query, args}
}

func (c *QueryCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	return queryRows(ctx, chk.DB, c.column.Table, c.query, []string{"id"}, c.args)
}

func (c *QueryCheck) Description() string {
	return c.describe(c.columnName() + " is invalid")
}
