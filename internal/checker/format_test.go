package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/floodtools/modelchecker/internal/checks"
	"github.com/floodtools/modelchecker/internal/schema"
)

func TestFormatCheckResult(t *testing.T) {
	chk := checks.Range(42, schema.C("global_settings", "flooding_threshold"),
		checks.Bounds{Min: checks.F(0)},
		checks.WithLevel(checks.Warning))
	row := checks.Row{Table: "global_settings", ID: 13}

	got := FormatCheckResult(chk, row)
	assert.Equal(t, "W0042 (id=13) global_settings.flooding_threshold has values <0", got)
}

func TestFormatResultPadsCode(t *testing.T) {
	chk := checks.NotNull(3, schema.C("manholes", "bottom_level"))
	line := FormatResult(Result{Check: chk, Row: checks.Row{Table: "manholes", ID: 7}})
	assert.Equal(t, "E0003 (id=7) manholes.bottom_level cannot be null", line)
}
