package checker

import (
	"fmt"

	"github.com/floodtools/modelchecker/internal/checks"
)

// FormatCheckResult renders one violation as a report line, e.g.
// "W0042 (id=13) some description". Downstream tooling parses this
// format; do not change it.
func FormatCheckResult(chk checks.Check, row checks.Row) string {
	return fmt.Sprintf("%c%04d (id=%d) %s",
		chk.Level().Letter(), chk.Code(), row.ID, chk.Description())
}

// FormatResult renders a collected Result.
func FormatResult(r Result) string {
	return FormatCheckResult(r.Check, r.Row)
}
