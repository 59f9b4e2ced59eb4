// Package schema is the static manifest of the hydraulic-model database:
// the declared tables, columns and enumerations the check registry is
// generated from. The manifest mirrors the SQL migrations in internal/db;
// it is declarative data, not live schema reflection.
package schema

import "fmt"

// ColumnType is the declared SQLite storage type of a column.
type ColumnType string

const (
	Text    ColumnType = "text"
	Integer ColumnType = "integer"
	Real    ColumnType = "real"
	Blob    ColumnType = "blob"
)

// GeometryType names the expected geometry class of a WKB blob column.
type GeometryType string

const (
	Point      GeometryType = "Point"
	LineString GeometryType = "LineString"
	Polygon    GeometryType = "Polygon"
)

// Ref is a foreign-key target.
type Ref struct {
	Table  string
	Column string
}

// Column describes one declared column.
type Column struct {
	Table      string
	Name       string
	Type       ColumnType
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	ForeignKey *Ref
	Enum       []int        // allowed values, nil when the column is not an enum
	Geometry   GeometryType // empty when the column is not a geometry
}

// QualifiedName returns "table.column".
func (c *Column) QualifiedName() string {
	return c.Table + "." + c.Name
}

// Table describes one declared table.
type Table struct {
	Name    string
	Columns []*Column
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var tablesByName = map[string]*Table{}

func init() {
	for _, t := range Tables {
		tablesByName[t.Name] = t
		for _, c := range t.Columns {
			c.Table = t.Name
		}
	}
}

// T returns the declared table with the given name, panicking on unknown
// names. The manifest is fixed at compile time, so a miss is a programming
// error.
func T(name string) *Table {
	t, ok := tablesByName[name]
	if !ok {
		panic(fmt.Sprintf("schema: unknown table %q", name))
	}
	return t
}

// C returns the column "table.name", panicking on unknown identifiers.
func C(table, name string) *Column {
	c := T(table).Column(name)
	if c == nil {
		panic(fmt.Sprintf("schema: unknown column %q.%q", table, name))
	}
	return c
}
