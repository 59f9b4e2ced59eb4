package schema

// Helpers keeping the table declarations compact.

func id() *Column {
	return &Column{Name: "id", Type: Integer, NotNull: true, PrimaryKey: true}
}

func text(name string) *Column    { return &Column{Name: name, Type: Text} }
func real(name string) *Column    { return &Column{Name: name, Type: Real} }
func integer(name string) *Column { return &Column{Name: name, Type: Integer} }

func notNull(c *Column) *Column { c.NotNull = true; return c }
func unique(c *Column) *Column  { c.Unique = true; return c }
func fk(c *Column, table string) *Column {
	c.ForeignKey = &Ref{Table: table, Column: "id"}
	return c
}
func enum(c *Column, values []int) *Column { c.Enum = values; return c }

func geom(name string, gt GeometryType) *Column {
	return &Column{Name: name, Type: Blob, Geometry: gt}
}

// Tables is the full declared model schema, in migration order.
var Tables = []*Table{
	{
		Name: "numerical_settings",
		Columns: []*Column{
			id(),
			integer("use_of_nested_newton"),
			integer("use_of_cg"),
			integer("max_nonlin_iterations"),
			real("cfl_strictness_factor_1d"),
			real("cfl_strictness_factor_2d"),
			real("pump_implicit_ratio"),
			real("general_numerical_threshold"),
		},
	},
	{
		Name: "global_settings",
		Columns: []*Column{
			id(),
			text("name"),
			notNull(enum(integer("use_0d_inflow"), inflowTypes)),
			notNull(integer("use_1d_flow")),
			notNull(integer("use_2d_flow")),
			notNull(integer("epsg_code")),
			real("grid_space"),
			notNull(integer("nr_timesteps")),
			notNull(real("sim_time_step")),
			real("maximum_sim_time_step"),
			integer("timestep_plus"),
			text("dem_file"),
			text("frict_coef_file"),
			real("frict_coef"),
			enum(integer("frict_type"), frictionTypes),
			text("interception_file"),
			real("interception_global"),
			text("initial_waterlevel_file"),
			real("initial_waterlevel"),
			real("flooding_threshold"),
			notNull(integer("kmax")),
			real("table_step_size"),
			notNull(fk(integer("numerical_settings_id"), "numerical_settings")),
		},
	},
	{
		Name: "connection_nodes",
		Columns: []*Column{
			id(),
			text("code"),
			real("storage_area"),
			real("initial_waterlevel"),
			notNull(geom("the_geom", Point)),
		},
	},
	{
		Name: "manholes",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			notNull(unique(fk(integer("connection_node_id"), "connection_nodes"))),
			notNull(real("bottom_level")),
			real("surface_level"),
			real("drain_level"),
			integer("manhole_indicator"),
			enum(integer("calculation_type"), calculationTypesNode),
			enum(integer("zoom_category"), zoomCategories),
		},
	},
	{
		Name: "channels",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			notNull(enum(integer("calculation_type"), calculationTypes)),
			real("dist_calc_points"),
			enum(integer("zoom_category"), zoomCategories),
			notNull(fk(integer("connection_node_start_id"), "connection_nodes")),
			notNull(fk(integer("connection_node_end_id"), "connection_nodes")),
			notNull(geom("the_geom", LineString)),
		},
	},
	{
		Name: "cross_section_definitions",
		Columns: []*Column{
			id(),
			text("code"),
			notNull(enum(integer("shape"), CrossSectionShapes)),
			text("width"),
			text("height"),
		},
	},
	{
		Name: "cross_section_locations",
		Columns: []*Column{
			id(),
			text("code"),
			notNull(fk(integer("channel_id"), "channels")),
			notNull(fk(integer("definition_id"), "cross_section_definitions")),
			notNull(real("reference_level")),
			notNull(enum(integer("friction_type"), frictionTypes)),
			notNull(real("friction_value")),
			real("bank_level"),
			notNull(geom("the_geom", Point)),
		},
	},
	{
		Name: "pipes",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			enum(integer("sewerage_type"), sewerageTypes),
			notNull(enum(integer("calculation_type"), calculationTypesNode)),
			notNull(real("invert_level_start_point")),
			notNull(real("invert_level_end_point")),
			notNull(fk(integer("cross_section_definition_id"), "cross_section_definitions")),
			notNull(enum(integer("friction_type"), frictionTypes)),
			notNull(real("friction_value")),
			real("dist_calc_points"),
			enum(integer("material"), materials),
			enum(integer("zoom_category"), zoomCategories),
			notNull(fk(integer("connection_node_start_id"), "connection_nodes")),
			notNull(fk(integer("connection_node_end_id"), "connection_nodes")),
		},
	},
	{
		Name: "culverts",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			notNull(enum(integer("calculation_type"), calculationTypesNode)),
			notNull(enum(integer("friction_type"), frictionTypes)),
			notNull(real("friction_value")),
			real("dist_calc_points"),
			real("discharge_coefficient_positive"),
			real("discharge_coefficient_negative"),
			notNull(real("invert_level_start_point")),
			notNull(real("invert_level_end_point")),
			notNull(fk(integer("cross_section_definition_id"), "cross_section_definitions")),
			notNull(fk(integer("connection_node_start_id"), "connection_nodes")),
			notNull(fk(integer("connection_node_end_id"), "connection_nodes")),
			geom("the_geom", LineString),
		},
	},
	{
		Name: "weirs",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			notNull(real("crest_level")),
			notNull(enum(integer("crest_type"), crestTypes)),
			enum(integer("friction_type"), frictionTypes),
			real("friction_value"),
			real("discharge_coefficient_positive"),
			real("discharge_coefficient_negative"),
			integer("sewerage"),
			enum(integer("zoom_category"), zoomCategories),
			notNull(fk(integer("cross_section_definition_id"), "cross_section_definitions")),
			notNull(fk(integer("connection_node_start_id"), "connection_nodes")),
			notNull(fk(integer("connection_node_end_id"), "connection_nodes")),
		},
	},
	{
		Name: "orifices",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			notNull(real("crest_level")),
			notNull(enum(integer("crest_type"), crestTypes)),
			enum(integer("friction_type"), frictionTypes),
			real("friction_value"),
			real("discharge_coefficient_positive"),
			real("discharge_coefficient_negative"),
			integer("sewerage"),
			notNull(fk(integer("cross_section_definition_id"), "cross_section_definitions")),
			notNull(fk(integer("connection_node_start_id"), "connection_nodes")),
			notNull(fk(integer("connection_node_end_id"), "connection_nodes")),
		},
	},
	{
		Name: "pumpstations",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			notNull(enum(integer("type"), pumpTypes)),
			notNull(real("start_level")),
			notNull(real("lower_stop_level")),
			real("upper_stop_level"),
			notNull(real("capacity")),
			integer("sewerage"),
			enum(integer("zoom_category"), zoomCategories),
			notNull(fk(integer("connection_node_start_id"), "connection_nodes")),
			fk(integer("connection_node_end_id"), "connection_nodes"),
		},
	},
	{
		Name: "potential_breaches",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			real("exchange_level"),
			real("maximum_breach_depth"),
			notNull(fk(integer("channel_id"), "channels")),
			notNull(geom("the_geom", LineString)),
		},
	},
	{
		Name: "boundary_conditions_1d",
		Columns: []*Column{
			id(),
			notNull(enum(integer("boundary_type"), boundaryTypes)),
			notNull(text("timeseries")),
			notNull(unique(fk(integer("connection_node_id"), "connection_nodes"))),
		},
	},
	{
		Name: "laterals_1d",
		Columns: []*Column{
			id(),
			notNull(fk(integer("connection_node_id"), "connection_nodes")),
			notNull(text("timeseries")),
		},
	},
	{
		Name: "surfaces",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			real("area"),
			real("dry_weather_flow"),
			integer("nr_of_inhabitants"),
			geom("the_geom", Polygon),
		},
	},
	{
		Name: "impervious_surfaces",
		Columns: []*Column{
			id(),
			text("code"),
			text("display_name"),
			enum(integer("surface_class"), surfaceClasses),
			real("area"),
			real("dry_weather_flow"),
			integer("nr_of_inhabitants"),
			geom("the_geom", Polygon),
		},
	},
	{
		Name: "surface_maps",
		Columns: []*Column{
			id(),
			notNull(fk(integer("surface_id"), "surfaces")),
			notNull(fk(integer("connection_node_id"), "connection_nodes")),
			real("percentage"),
		},
	},
	{
		Name: "impervious_surface_maps",
		Columns: []*Column{
			id(),
			notNull(fk(integer("impervious_surface_id"), "impervious_surfaces")),
			notNull(fk(integer("connection_node_id"), "connection_nodes")),
			notNull(real("percentage")),
		},
	},
}
