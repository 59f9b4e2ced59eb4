package checks

import (
	"github.com/floodtools/modelchecker/internal/schema"
)

// Error codes of the generated checks. Hand-written checks carry their
// own codes; the generated ones share a code per kind.
const (
	CodeForeignKey   = 1
	CodeUnique       = 2
	CodeNotNull      = 3
	CodeType         = 4
	CodeGeometry     = 5
	CodeGeometryType = 6
	CodeEnum         = 7
)

// GenerateForeignKeyChecks builds a ForeignKeyCheck for every foreign
// key column of the table.
func GenerateForeignKeyChecks(table *schema.Table, levels map[string]Severity) []Check {
	var out []Check
	for _, col := range table.Columns {
		if col.ForeignKey == nil {
			continue
		}
		ref := schema.C(col.ForeignKey.Table, col.ForeignKey.Column)
		out = append(out, ForeignKey(CodeForeignKey, col, ref, levelOpts(levels, col.Name)...))
	}
	return out
}

// GenerateUniqueChecks builds a UniqueCheck for every unique column of
// the table.
func GenerateUniqueChecks(table *schema.Table, levels map[string]Severity) []Check {
	var out []Check
	for _, col := range table.Columns {
		if !col.Unique || col.PrimaryKey {
			continue
		}
		out = append(out, Unique(CodeUnique, col, levelOpts(levels, col.Name)...))
	}
	return out
}

// GenerateNotNullChecks builds a NotNullCheck for every NOT NULL column
// of the table.
func GenerateNotNullChecks(table *schema.Table, levels map[string]Severity) []Check {
	var out []Check
	for _, col := range table.Columns {
		if !col.NotNull || col.PrimaryKey {
			continue
		}
		out = append(out, NotNull(CodeNotNull, col, levelOpts(levels, col.Name)...))
	}
	return out
}

// GenerateTypeChecks builds a TypeCheck for every non-geometry column of
// the table. SQLite does not enforce column types on insert.
func GenerateTypeChecks(table *schema.Table, levels map[string]Severity) []Check {
	var out []Check
	for _, col := range table.Columns {
		if col.Geometry != "" || col.PrimaryKey {
			continue
		}
		out = append(out, Type(CodeType, col, levelOpts(levels, col.Name)...))
	}
	return out
}

// GenerateGeometryChecks builds validity and geometry-type checks for
// every geometry column of the table.
func GenerateGeometryChecks(table *schema.Table, levels map[string]Severity) []Check {
	var out []Check
	for _, col := range table.Columns {
		if col.Geometry == "" {
			continue
		}
		opts := levelOpts(levels, col.Name)
		out = append(out, Geometry(CodeGeometry, col, opts...))
		out = append(out, GeometryType(CodeGeometryType, col, opts...))
	}
	return out
}

// GenerateEnumChecks builds an EnumCheck for every enum column of the
// table.
func GenerateEnumChecks(table *schema.Table, levels map[string]Severity) []Check {
	var out []Check
	for _, col := range table.Columns {
		if col.Enum == nil {
			continue
		}
		out = append(out, Enum(CodeEnum, col, levelOpts(levels, col.Name)...))
	}
	return out
}

// GenerateTableChecks builds the full generated battery for one table.
func GenerateTableChecks(table *schema.Table, levels map[string]Severity) []Check {
	var out []Check
	out = append(out, GenerateForeignKeyChecks(table, levels)...)
	out = append(out, GenerateUniqueChecks(table, levels)...)
	out = append(out, GenerateNotNullChecks(table, levels)...)
	out = append(out, GenerateTypeChecks(table, levels)...)
	out = append(out, GenerateGeometryChecks(table, levels)...)
	out = append(out, GenerateEnumChecks(table, levels)...)
	return out
}

func levelOpts(levels map[string]Severity, column string) []Option {
	if levels == nil {
		return nil
	}
	level, ok := levels[column]
	if !ok {
		return nil
	}
	return []Option{WithLevel(level)}
}
