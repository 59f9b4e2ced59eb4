// Package checks implements the rule-evaluation framework: the Check
// abstraction, the reusable relational primitives, and the hand-written
// domain checks (cross-sections, rasters, spatial rules, timeseries).
//
// A Check is immutable once constructed and is shared across validation
// runs; GetInvalid must be a pure function of the check and the execution
// context. A check never flags rows that are malformed with respect to a
// different check's concern: it skips them and leaves the flagging to the
// check that owns that concern, so a validation run always completes even
// over a corrupt model.
package checks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/floodtools/modelchecker/internal/schema"
)

// Severity orders check levels. Error > Warning > Info.
type Severity int

const (
	Info Severity = iota + 1
	Warning
	Error
)

// ParseSeverity converts a case-insensitive level name.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(s) {
	case "INFO":
		return Info, nil
	case "WARNING":
		return Warning, nil
	case "ERROR":
		return Error, nil
	default:
		return 0, fmt.Errorf("unknown check level %q", s)
	}
}

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Letter returns the single-letter prefix used in reports.
func (s Severity) Letter() byte {
	return s.String()[0]
}

// Row is one invalid row as reported by a check: the table it came from,
// its primary key, and any column values the check happened to select.
type Row struct {
	Table  string
	ID     int64
	Values map[string]any
}

// Context is the execution environment of a validation run: a read-only
// database session plus the raster capability attached to it. Checks
// must not mutate either.
type Context struct {
	DB     *sql.DB
	Raster RasterContext // nil when no raster context is attached
}

// Check is a single validation rule.
type Check interface {
	// GetInvalid returns the rows violating this rule; an empty or nil
	// slice means none. The error is reserved for infrastructure
	// failures (broken session), never for malformed row data.
	GetInvalid(ctx context.Context, c *Context) ([]Row, error)

	// Description renders the human-readable rule explanation from the
	// check's own configuration; it never touches the database.
	Description() string

	// Code is the stable numeric error code.
	Code() int

	// Level is the check severity.
	Level() Severity

	// IsBeta marks checks that only run when beta features are allowed.
	IsBeta() bool

	// Column identifies the validated column.
	Column() *schema.Column
}

// Cond is a SQL boolean fragment with bind parameters, used as a check's
// scoping filter. Conditions compose with AND; a check's own predicate
// never replaces the filter, it narrows it further.
type Cond struct {
	SQL  string
	Args []any
}

// Where builds a condition from a SQL fragment.
func Where(sqlFragment string, args ...any) Cond {
	return Cond{SQL: sqlFragment, Args: args}
}

// And returns the conjunction of both conditions.
func (c Cond) And(other Cond) Cond {
	switch {
	case c.SQL == "":
		return other
	case other.SQL == "":
		return c
	}
	return Cond{
		SQL:  "(" + c.SQL + ") AND (" + other.SQL + ")",
		Args: append(append([]any{}, c.Args...), other.Args...),
	}
}

// IsZero reports whether the condition is empty (matches everything).
func (c Cond) IsZero() bool { return c.SQL == "" }

// BaseCheck carries the configuration shared by all checks. It is
// embedded by the concrete check types and never mutated after
// construction.
type BaseCheck struct {
	column  *schema.Column
	code    int
	level   Severity
	beta    bool
	filter  Cond
	message string
}

// Option configures a BaseCheck at construction time.
type Option func(*BaseCheck)

// WithLevel overrides the default ERROR severity.
func WithLevel(level Severity) Option {
	return func(b *BaseCheck) { b.level = level }
}

// WithFilter scopes the check to rows matching the condition.
func WithFilter(filter Cond) Option {
	return func(b *BaseCheck) { b.filter = filter }
}

// WithMessage overrides the generated description.
func WithMessage(message string) Option {
	return func(b *BaseCheck) { b.message = message }
}

// Beta marks the check as a beta feature.
func Beta() Option {
	return func(b *BaseCheck) { b.beta = true }
}

func newBase(code int, column *schema.Column, opts ...Option) BaseCheck {
	b := BaseCheck{column: column, code: code, level: Error}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *BaseCheck) Code() int              { return b.code }
func (b *BaseCheck) Level() Severity        { return b.level }
func (b *BaseCheck) IsBeta() bool           { return b.beta }
func (b *BaseCheck) Column() *schema.Column { return b.column }

// Filter exposes the scoping condition, for checks that compose further.
func (b *BaseCheck) Filter() Cond { return b.filter }

// describe returns the message override when set, else the default.
func (b *BaseCheck) describe(def string) string {
	if b.message != "" {
		return b.message
	}
	return def
}

// columnName returns "table.column" for descriptions.
func (b *BaseCheck) columnName() string { return b.column.QualifiedName() }

// invalidRows runs SELECT against the check's table, combining the
// scoping filter with the check-specific predicate, and scans the
// selected columns into Rows. The id column is always selected first.
func (b *BaseCheck) invalidRows(ctx context.Context, db *sql.DB, extraColumns []string, predicate Cond) ([]Row, error) {
	cond := b.filter.And(predicate)

	cols := append([]string{"id"}, extraColumns...)
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + b.column.Table
	if !cond.IsZero() {
		query += " WHERE " + cond.SQL
	}
	query += " ORDER BY id"

	return queryRows(ctx, db, b.column.Table, query, cols, cond.Args)
}

func sortRowsByID(rows []Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
}

// queryRows executes an arbitrary SELECT whose first column is the row
// id, scanning all columns into Row.Values.
func queryRows(ctx context.Context, db *sql.DB, table, query string, cols []string, args []any) ([]Row, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	dest := make([]any, len(cols))
	for rows.Next() {
		values := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		r := Row{Table: table, Values: make(map[string]any, len(cols))}
		for i, name := range cols {
			r.Values[name] = values[i]
		}
		if id, ok := values[0].(int64); ok {
			r.ID = id
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// valueString fetches a named column value as a string, reporting ok
// false for NULL or absent values.
func (r Row) valueString(name string) (string, bool) {
	v, present := r.Values[name]
	if !present || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return fmt.Sprint(s), true
	}
}

// valueInt fetches a named column value as an int64.
func (r Row) valueInt(name string) (int64, bool) {
	v, present := r.Values[name]
	if !present || v == nil {
		return 0, false
	}
	i, ok := v.(int64)
	return i, ok
}

// valueFloat fetches a named column value as a float64.
func (r Row) valueFloat(name string) (float64, bool) {
	v, present := r.Values[name]
	if !present || v == nil {
		return 0, false
	}
	switch f := v.(type) {
	case float64:
		return f, true
	case int64:
		return float64(f), true
	default:
		return 0, false
	}
}
