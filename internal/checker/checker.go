package checker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/floodtools/modelchecker/internal/checks"
	"github.com/floodtools/modelchecker/internal/db"
)

// Result is one reported violation: a check paired with a row it
// flagged.
type Result struct {
	Check checks.Check
	Row   checks.Row
}

// Checker evaluates a check registry against one model database.
type Checker struct {
	db     *sql.DB
	config *Config
	raster checks.RasterContext
	log    *slog.Logger
}

// New builds a Checker for the given model database. The schema version
// is validated first: a model that is too old is rejected, a model that
// is newer than this build only logs a warning.
func New(modelDB *sql.DB, config *Config, raster checks.RasterContext, log *slog.Logger) (*Checker, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := db.ValidateSchema(modelDB); err != nil {
		if !errors.Is(err, db.ErrSchemaTooNew) {
			return nil, fmt.Errorf("validate schema: %w", err)
		}
		log.Warn("model schema is newer than this checker; results may be incomplete",
			"error", err)
	}
	return &Checker{db: modelDB, config: config, raster: raster, log: log}, nil
}

// Checks returns the checks a run at the given level would evaluate.
func (c *Checker) Checks(level checks.Severity) []checks.Check {
	return c.config.IterChecks(level)
}

// Errors runs every check at or above the given level and collects the
// violations. A failing check is logged and skipped; one broken check
// must not abort the run.
func (c *Checker) Errors(ctx context.Context, level checks.Severity) ([]Result, error) {
	runID := uuid.NewString()
	log := c.log.With("run_id", runID)

	checkCtx := &checks.Context{DB: c.db, Raster: c.raster}
	toRun := c.config.IterChecks(level)
	log.Info("starting validation run", "checks", len(toRun), "level", level.String())

	var results []Result
	failed := 0
	for _, chk := range toRun {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		rows, err := chk.GetInvalid(ctx, checkCtx)
		if err != nil {
			failed++
			log.Error("check failed",
				"code", chk.Code(),
				"column", chk.Column().QualifiedName(),
				"error", err)
			continue
		}
		for _, row := range rows {
			results = append(results, Result{Check: chk, Row: row})
		}
	}

	log.Info("validation run finished",
		"violations", len(results), "failed_checks", failed)
	return results, nil
}
