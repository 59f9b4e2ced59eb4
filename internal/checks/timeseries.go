package checks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/floodtools/modelchecker/internal/schema"
)

// A timeseries is stored as newline-separated "timestep,value" pairs,
// with the timestep in minutes since simulation start.

type timeseriesEntry struct {
	timestep int64
	value    float64
}

// parseTimeseries decodes a timeseries, reporting the first malformed
// line. Leading and trailing blank lines are tolerated.
func parseTimeseries(s string) ([]timeseriesEntry, error) {
	var entries []timeseriesEntry
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %q is not of the format 'timestep,value'", line)
		}
		timestep, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("timestep %q is not an integer", fields[0])
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not a number", fields[1])
		}
		entries = append(entries, timeseriesEntry{timestep, value})
	}
	return entries, nil
}

// timeseriesRows fetches the scoped non-empty timeseries values.
func (c *BaseCheck) timeseriesRows(ctx context.Context, chk *Context) ([]Row, error) {
	return c.invalidRows(ctx, chk.DB, nil, notEmpty(c.column.Name))
}

// TimeseriesRowCheck flags timeseries that do not parse at all.
type TimeseriesRowCheck struct {
	BaseCheck
}

func TimeseriesRow(code int, column *schema.Column, opts ...Option) *TimeseriesRowCheck {
	return &TimeseriesRowCheck{newBase(code, column, opts...)}
}

func (c *TimeseriesRowCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.timeseriesRows(ctx, chk)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		s, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		entries, err := parseTimeseries(s)
		if err != nil || len(entries) == 0 {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *TimeseriesRowCheck) Description() string {
	return c.describe(fmt.Sprintf("%s must contain at least one line of the format 'timestep,value'", c.columnName()))
}

// TimeseriesIncreasingCheck flags timeseries whose timesteps are not
// strictly increasing. Unparsable timeseries are skipped.
type TimeseriesIncreasingCheck struct {
	BaseCheck
}

func TimeseriesIncreasing(code int, column *schema.Column, opts ...Option) *TimeseriesIncreasingCheck {
	return &TimeseriesIncreasingCheck{newBase(code, column, opts...)}
}

func (c *TimeseriesIncreasingCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.timeseriesRows(ctx, chk)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		s, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		entries, err := parseTimeseries(s)
		if err != nil {
			continue
		}
		for i := 1; i < len(entries); i++ {
			if entries[i-1].timestep >= entries[i].timestep {
				invalid = append(invalid, row)
				break
			}
		}
	}
	return invalid, nil
}

func (c *TimeseriesIncreasingCheck) Description() string {
	return c.describe(fmt.Sprintf("The timesteps in %s should be strictly increasing", c.columnName()))
}

// TimeseriesStartsAtZeroCheck flags timeseries whose first timestep is
// not 0.
type TimeseriesStartsAtZeroCheck struct {
	BaseCheck
}

func TimeseriesStartsAtZero(code int, column *schema.Column, opts ...Option) *TimeseriesStartsAtZeroCheck {
	opts = append([]Option{WithLevel(Warning)}, opts...)
	return &TimeseriesStartsAtZeroCheck{newBase(code, column, opts...)}
}

func (c *TimeseriesStartsAtZeroCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.timeseriesRows(ctx, chk)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		s, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		entries, err := parseTimeseries(s)
		if err != nil || len(entries) == 0 {
			continue
		}
		if entries[0].timestep != 0 {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *TimeseriesStartsAtZeroCheck) Description() string {
	return c.describe(fmt.Sprintf("The first timestep in %s should be 0", c.columnName()))
}

// TimeseriesEqualTimestepsCheck flags boundary condition timeseries that
// do not all share the same timesteps. The simulation samples every
// boundary at the timesteps of the first one.
type TimeseriesEqualTimestepsCheck struct {
	BaseCheck
}

func TimeseriesEqualTimesteps(code int, column *schema.Column, opts ...Option) *TimeseriesEqualTimestepsCheck {
	return &TimeseriesEqualTimestepsCheck{newBase(code, column, opts...)}
}

func (c *TimeseriesEqualTimestepsCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.timeseriesRows(ctx, chk)
	if err != nil {
		return nil, err
	}
	var reference []timeseriesEntry
	var invalid []Row
	for _, row := range rows {
		s, ok := row.valueString(c.column.Name)
		if !ok {
			continue
		}
		entries, err := parseTimeseries(s)
		if err != nil || len(entries) == 0 {
			continue
		}
		if reference == nil {
			reference = entries
			continue
		}
		if !equalTimesteps(reference, entries) {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func equalTimesteps(a, b []timeseriesEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].timestep != b[i].timestep {
			return false
		}
	}
	return true
}

func (c *TimeseriesEqualTimestepsCheck) Description() string {
	return c.describe(fmt.Sprintf("All timeseries in %s should have the same timesteps", c.columnName()))
}
