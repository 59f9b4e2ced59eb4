// Package checker owns the check registry and the validation run loop.
package checker

import (
	"fmt"
	"path"

	"github.com/floodtools/modelchecker/internal/checks"
	"github.com/floodtools/modelchecker/internal/schema"
)

// Thresholds of the spatial checks, in the horizontal units of the
// model's CRS.
const (
	minNodeDistance       = 0.1
	minStructureLength    = 0.05
	linestringTolerance   = 1.0
	crossSectionTolerance = 1.0
	breachMinDistance     = 1.0
)

// Options configures which checks a run evaluates.
type Options struct {
	// AllowBeta enables checks on features still in beta.
	AllowBeta bool
	// Ignore holds glob patterns matched against the zero-padded error
	// code, e.g. "00*" or "0301".
	Ignore []string
}

// Config is the immutable, ordered check registry for one run
// configuration.
type Config struct {
	opts   Options
	checks []checks.Check
}

// NewConfig builds the registry: the generated per-column battery for
// every declared table, then the hand-written domain checks. Error
// codes are stable identifiers; never reassign them.
func NewConfig(opts Options) *Config {
	c := &Config{opts: opts}
	for _, table := range schema.Tables {
		c.add(checks.GenerateTableChecks(table, generatedLevels[table.Name])...)
	}
	c.add(frictionChecks()...)
	c.add(settingsChecks()...)
	c.add(structureChecks()...)
	c.add(crossSectionChecks()...)
	c.add(rasterChecks()...)
	c.add(spatialChecks()...)
	c.add(timeseriesChecks()...)
	c.add(surfaceChecks()...)
	return c
}

func (c *Config) add(chks ...checks.Check) {
	c.checks = append(c.checks, chks...)
}

// Checks returns every registered check, unfiltered.
func (c *Config) Checks() []checks.Check {
	return c.checks
}

// IterChecks returns the checks a run at the given level evaluates:
// severity at or above level, beta checks only when allowed, ignored
// codes dropped.
func (c *Config) IterChecks(level checks.Severity) []checks.Check {
	var out []checks.Check
	for _, chk := range c.checks {
		if chk.Level() < level {
			continue
		}
		if chk.IsBeta() && !c.opts.AllowBeta {
			continue
		}
		if c.ignored(chk.Code()) {
			continue
		}
		out = append(out, chk)
	}
	return out
}

func (c *Config) ignored(code int) bool {
	padded := fmt.Sprintf("%04d", code)
	for _, pattern := range c.opts.Ignore {
		if ok, _ := path.Match(pattern, padded); ok {
			return true
		}
	}
	return false
}

// generatedLevels downgrades generated checks on advisory columns.
var generatedLevels = map[string]map[string]checks.Severity{
	"manholes": {
		"zoom_category":     checks.Info,
		"manhole_indicator": checks.Info,
	},
	"channels":     {"zoom_category": checks.Info},
	"pipes":        {"zoom_category": checks.Info, "material": checks.Info},
	"weirs":        {"zoom_category": checks.Info},
	"pumpstations": {"zoom_category": checks.Info},
	"connection_nodes": {
		"code": checks.Info,
	},
}

func col(table, name string) *schema.Column { return schema.C(table, name) }

var (
	positive    = checks.Bounds{Min: checks.F(0), MinExclusive: true}
	nonNegative = checks.Bounds{Min: checks.F(0)}
)

// broadCrested scopes a check to broad-crested structures; friction is
// not used on short-crested ones.
func broadCrested() checks.Option {
	return checks.WithFilter(checks.Where("crest_type = ?", int(schema.BroadCrested)))
}

func frictionChecks() []checks.Check {
	manning := checks.Where("friction_type IN (?, ?)",
		int(schema.FrictionManning), int(schema.FrictionManningConveyance))
	return []checks.Check{
		checks.Range(21, col("cross_section_locations", "friction_value"), positive),
		checks.Range(22, col("pipes", "friction_value"), positive),
		checks.Range(23, col("culverts", "friction_value"), positive),
		checks.Range(24, col("weirs", "friction_value"), positive, broadCrested()),
		checks.Range(25, col("orifices", "friction_value"), positive, broadCrested()),
		checks.Range(26, col("cross_section_locations", "friction_value"),
			checks.Bounds{Max: checks.F(1), MaxExclusive: true},
			checks.WithFilter(manning), checks.WithLevel(checks.Warning),
			checks.WithMessage("cross_section_locations.friction_value is unusually high for Manning friction (>=1)")),
	}
}

func settingsChecks() []checks.Check {
	return []checks.Check{
		checks.Query(31, col("channels", "calculation_type"),
			`SELECT c.id FROM channels c
			 WHERE c.calculation_type IN (102, 105)
			   AND NOT EXISTS (
			     SELECT 1 FROM global_settings g
			     WHERE g.dem_file IS NOT NULL AND g.dem_file != ''
			   )
			 ORDER BY c.id`, nil,
			checks.WithMessage("channels.calculation_type (dem-)connected requires a DEM raster in global_settings.dem_file")),
		checks.NotNull(41, col("global_settings", "maximum_sim_time_step"),
			checks.WithFilter(checks.Where("timestep_plus = 1")),
			checks.WithMessage("global_settings.maximum_sim_time_step cannot be null when timestep_plus is set")),
		checks.Query(42, col("global_settings", "maximum_sim_time_step"),
			`SELECT id FROM global_settings
			 WHERE maximum_sim_time_step IS NOT NULL
			   AND maximum_sim_time_step < sim_time_step
			 ORDER BY id`, nil,
			checks.WithMessage("global_settings.maximum_sim_time_step should not be smaller than sim_time_step")),
		checks.Range(43, col("global_settings", "flooding_threshold"),
			checks.Bounds{Min: checks.F(0), Max: checks.F(0.05), MaxExclusive: true},
			checks.WithLevel(checks.Warning)),
		checks.Query(44, col("global_settings", "use_0d_inflow"),
			`SELECT id FROM global_settings
			 WHERE (use_0d_inflow = 1 AND NOT EXISTS (SELECT 1 FROM impervious_surfaces))
			    OR (use_0d_inflow = 2 AND NOT EXISTS (SELECT 1 FROM surfaces))
			 ORDER BY id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("global_settings.use_0d_inflow is enabled but no (impervious) surfaces are defined")),
		checks.Range(45, col("global_settings", "sim_time_step"), positive),
		checks.Range(46, col("global_settings", "nr_timesteps"), positive),
		checks.Range(47, col("global_settings", "kmax"), positive),
		checks.Range(48, col("global_settings", "grid_space"), positive),
		checks.Range(49, col("global_settings", "table_step_size"), positive),
		checks.AllEqual(50, col("global_settings", "epsg_code"),
			checks.WithLevel(checks.Warning),
			checks.WithMessage("multiple global_settings rows declare different epsg_code values; only the first is used")),
		checks.Query(51, col("numerical_settings", "use_of_nested_newton"),
			`SELECT n.id FROM numerical_settings n
			 WHERE n.use_of_nested_newton = 0
			   AND EXISTS (
			     SELECT 1 FROM cross_section_definitions d
			     WHERE d.shape IN (0, 2, 3, 8)
			       AND d.id IN (
			         SELECT definition_id FROM cross_section_locations
			         UNION ALL SELECT cross_section_definition_id FROM pipes
			         UNION ALL SELECT cross_section_definition_id FROM culverts
			       )
			   )
			 ORDER BY n.id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("numerical_settings.use_of_nested_newton is off while the model contains closed cross-sections; simulations may not converge")),
		checks.Query(52, col("cross_section_locations", "bank_level"),
			`SELECT l.id FROM cross_section_locations l
			 JOIN channels c ON l.channel_id = c.id
			 WHERE c.calculation_type IN (102, 105) AND l.bank_level IS NULL
			 ORDER BY l.id`, nil,
			checks.WithMessage("cross_section_locations.bank_level cannot be null when the channel is (double) connected")),
		checks.Query(53, col("cross_section_locations", "bank_level"),
			`SELECT id FROM cross_section_locations
			 WHERE bank_level IS NOT NULL AND bank_level < reference_level
			 ORDER BY id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("cross_section_locations.bank_level should not be below reference_level")),
	}
}

func structureChecks() []checks.Check {
	return []checks.Check{
		checks.Query(60, col("boundary_conditions_1d", "connection_node_id"),
			`SELECT b.id FROM boundary_conditions_1d b
			 WHERE (SELECT COUNT(*) FROM channels t
			         WHERE t.connection_node_start_id = b.connection_node_id
			            OR t.connection_node_end_id = b.connection_node_id)
			     + (SELECT COUNT(*) FROM pipes t
			         WHERE t.connection_node_start_id = b.connection_node_id
			            OR t.connection_node_end_id = b.connection_node_id)
			     + (SELECT COUNT(*) FROM culverts t
			         WHERE t.connection_node_start_id = b.connection_node_id
			            OR t.connection_node_end_id = b.connection_node_id)
			     + (SELECT COUNT(*) FROM orifices t
			         WHERE t.connection_node_start_id = b.connection_node_id
			            OR t.connection_node_end_id = b.connection_node_id)
			     + (SELECT COUNT(*) FROM weirs t
			         WHERE t.connection_node_start_id = b.connection_node_id
			            OR t.connection_node_end_id = b.connection_node_id) != 1
			 ORDER BY b.id`, nil,
			checks.WithMessage("boundary_conditions_1d.connection_node_id should be connected to exactly one channel, pipe, culvert, orifice or weir")),
		checks.Query(61, col("manholes", "bottom_level"),
			`SELECT id FROM manholes
			 WHERE surface_level IS NOT NULL AND bottom_level > surface_level
			 ORDER BY id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("manholes.bottom_level should not be above surface_level")),
		checks.Query(62, col("manholes", "drain_level"),
			`SELECT id FROM manholes
			 WHERE drain_level IS NOT NULL AND drain_level < bottom_level
			 ORDER BY id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("manholes.drain_level should not be below bottom_level")),
		checks.Query(63, col("pumpstations", "lower_stop_level"),
			`SELECT id FROM pumpstations
			 WHERE lower_stop_level >= start_level
			 ORDER BY id`, nil,
			checks.WithMessage("pumpstations.lower_stop_level should be below start_level")),
		checks.Query(64, col("pumpstations", "upper_stop_level"),
			`SELECT id FROM pumpstations
			 WHERE upper_stop_level IS NOT NULL AND upper_stop_level <= start_level
			 ORDER BY id`, nil,
			checks.WithMessage("pumpstations.upper_stop_level should be above start_level")),
		checks.Range(65, col("pumpstations", "capacity"), nonNegative),
		checks.Query(66, col("pumpstations", "capacity"),
			`SELECT id FROM pumpstations WHERE capacity = 0 ORDER BY id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("pumpstations.capacity of 0 means the pump never moves water")),
		checks.Range(67, col("weirs", "discharge_coefficient_positive"), nonNegative),
		checks.Range(68, col("weirs", "discharge_coefficient_negative"), nonNegative),
		checks.Range(69, col("orifices", "discharge_coefficient_positive"), nonNegative),
		checks.Range(70, col("orifices", "discharge_coefficient_negative"), nonNegative),
		checks.Range(71, col("culverts", "discharge_coefficient_positive"), nonNegative),
		checks.Range(72, col("culverts", "discharge_coefficient_negative"), nonNegative),
		checks.Query(73, col("pipes", "invert_level_start_point"),
			`SELECT p.id FROM pipes p
			 JOIN manholes m ON p.connection_node_start_id = m.connection_node_id
			 WHERE p.invert_level_start_point < m.bottom_level
			 ORDER BY p.id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("pipes.invert_level_start_point should be at or above the manhole bottom_level")),
		checks.Query(74, col("pipes", "invert_level_end_point"),
			`SELECT p.id FROM pipes p
			 JOIN manholes m ON p.connection_node_end_id = m.connection_node_id
			 WHERE p.invert_level_end_point < m.bottom_level
			 ORDER BY p.id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("pipes.invert_level_end_point should be at or above the manhole bottom_level")),
		checks.Range(75, col("channels", "dist_calc_points"), positive),
		checks.Range(76, col("pipes", "dist_calc_points"), positive),
		checks.Range(77, col("culverts", "dist_calc_points"), positive),
		checks.Range(78, col("connection_nodes", "storage_area"), nonNegative),
		checks.Range(79, col("potential_breaches", "maximum_breach_depth"),
			checks.Bounds{Min: checks.F(0), MinExclusive: true, Max: checks.F(100)},
			checks.Beta()),
		checks.Query(80, col("pumpstations", "capacity"),
			`SELECT p.id FROM pumpstations p
			 JOIN connection_nodes n ON p.connection_node_start_id = n.id
			 WHERE p.capacity > 0 AND n.storage_area IS NOT NULL
			   AND (n.storage_area * 1000.0) / p.capacity <
			       (SELECT sim_time_step FROM global_settings ORDER BY id LIMIT 1)
			 ORDER BY p.id`, nil,
			checks.WithLevel(checks.Warning),
			checks.WithMessage("pumpstations.capacity empties the start connection node storage within one simulation time step")),
	}
}

// Shape groups used by the definition checks.
var (
	simpleShapes    = []schema.CrossSectionShape{schema.ClosedRectangle, schema.Rectangle, schema.Circle, schema.Egg, schema.InvertedEgg}
	tabulatedShapes = []schema.CrossSectionShape{schema.TabulatedRectangle, schema.TabulatedTrapezium}
	listShapes      = []schema.CrossSectionShape{schema.TabulatedRectangle, schema.TabulatedTrapezium, schema.TabulatedYZ}
	heightShapes    = []schema.CrossSectionShape{schema.ClosedRectangle, schema.TabulatedRectangle, schema.TabulatedTrapezium, schema.TabulatedYZ}
)

func crossSectionChecks() []checks.Check {
	width := col("cross_section_definitions", "width")
	height := col("cross_section_definitions", "height")
	return []checks.Check{
		checks.CrossSectionNull(81, width, nil),
		checks.CrossSectionNull(82, height, heightShapes),
		checks.CrossSectionFloat(83, width, simpleShapes),
		checks.CrossSectionFloat(84, height, []schema.CrossSectionShape{schema.ClosedRectangle}),
		checks.CrossSectionGreaterZero(85, width, simpleShapes),
		checks.CrossSectionGreaterZero(86, height, []schema.CrossSectionShape{schema.ClosedRectangle}),
		checks.CrossSectionFloatList(87, width, listShapes),
		checks.CrossSectionFloatList(88, height, listShapes),
		checks.CrossSectionEqualElements(89, listShapes),
		checks.CrossSectionIncreasing(90, height, tabulatedShapes),
		checks.CrossSectionFirstElementZero(91, height, tabulatedShapes),
		checks.CrossSectionFirstElementNonZero(92, width,
			[]schema.CrossSectionShape{schema.TabulatedRectangle}),
		checks.CrossSectionYZHeight(93, height),
		checks.CrossSectionYZCoordinateCount(94),
		checks.CrossSectionYZIncreasingWidthIfOpen(95),
		checks.CrossSectionMinimumDiameter(96, checks.WithLevel(checks.Warning)),
		checks.CrossSectionExpectEmpty(97, height,
			[]schema.CrossSectionShape{schema.Rectangle},
			checks.WithLevel(checks.Info)),
		checks.OpenIncreasingConveyanceFriction(98),
		checks.ConveyanceFrictionAdvice(99),
		checks.ChannelConfiguration(100, checks.WithLevel(checks.Warning)),
	}
}

// rasterBattery builds the per-column raster checks at base..base+8.
func rasterBattery(base int, column *schema.Column) []checks.Check {
	return []checks.Check{
		checks.RasterExists(base, column),
		checks.RasterIsValid(base+1, column),
		checks.RasterHasOneBand(base+2, column, checks.WithLevel(checks.Warning)),
		checks.RasterHasProjection(base+3, column),
		checks.RasterIsProjected(base+4, column),
		checks.RasterHasMatchingEPSG(base+5, column, checks.WithLevel(checks.Warning)),
		checks.RasterSquareCells(base+6, 7, column),
		checks.RasterPixelCount(base+7, column),
	}
}

func rasterChecks() []checks.Check {
	dem := col("global_settings", "dem_file")
	frict := col("global_settings", "frict_coef_file")
	interception := col("global_settings", "interception_file")
	waterlevel := col("global_settings", "initial_waterlevel_file")

	out := rasterBattery(801, dem)
	out = append(out, checks.RasterGridSize(809, dem))
	out = append(out, rasterBattery(811, frict)...)
	out = append(out, checks.RasterRange(819, frict,
		checks.Bounds{Min: checks.F(0), MinExclusive: true, Max: checks.F(1)}))
	out = append(out, rasterBattery(821, interception)...)
	out = append(out, checks.RasterRange(829, interception, nonNegative))
	out = append(out, rasterBattery(831, waterlevel)...)
	out = append(out, checks.RasterBackendAvailable(840))
	return out
}

func spatialChecks() []checks.Check {
	return []checks.Check{
		checks.ConnectionNodesDistance(201, minNodeDistance),
		checks.ConnectionNodesLength(202, col("weirs", "connection_node_start_id"), minStructureLength),
		checks.ConnectionNodesLength(203, col("orifices", "connection_node_start_id"), minStructureLength),
		checks.ConnectionNodesLength(204, col("pumpstations", "connection_node_start_id"), minStructureLength),
		checks.LinestringLocation(205, col("channels", "the_geom"), linestringTolerance),
		checks.LinestringLocation(206, col("culverts", "the_geom"), linestringTolerance),
		checks.CrossSectionLocation(207, crossSectionTolerance),
		checks.PotentialBreachStartEnd(208, breachMinDistance, checks.Beta()),
		checks.PotentialBreachInterdistance(209, breachMinDistance, checks.Beta()),
		checks.PotentialBreachLocation(210, linestringTolerance, checks.Beta()),
	}
}

func timeseriesChecks() []checks.Check {
	boundary := col("boundary_conditions_1d", "timeseries")
	lateral := col("laterals_1d", "timeseries")
	return []checks.Check{
		checks.TimeseriesRow(1201, boundary),
		checks.TimeseriesIncreasing(1202, boundary),
		checks.TimeseriesStartsAtZero(1203, boundary),
		checks.TimeseriesEqualTimesteps(1204, boundary),
		checks.TimeseriesRow(1205, lateral),
		checks.TimeseriesIncreasing(1206, lateral),
	}
}

func surfaceChecks() []checks.Check {
	percentage := checks.Bounds{Min: checks.F(0), Max: checks.F(100)}
	return []checks.Check{
		checks.Range(1221, col("surface_maps", "percentage"), percentage),
		checks.Range(1222, col("impervious_surface_maps", "percentage"), percentage),
		checks.Range(1223, col("surfaces", "area"), nonNegative),
		checks.Range(1224, col("impervious_surfaces", "area"), nonNegative),
		checks.Range(1225, col("surfaces", "nr_of_inhabitants"), nonNegative),
		checks.Range(1226, col("impervious_surfaces", "nr_of_inhabitants"), nonNegative),
	}
}
