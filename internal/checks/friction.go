package checks

import (
	"context"

	"github.com/floodtools/modelchecker/internal/schema"
)

// locationProfiles fetches every cross-section location together with
// the shape, width and height of its definition.
func locationProfiles(ctx context.Context, chk *Context) ([]Row, error) {
	const q = `SELECT l.id, l.friction_type, d.shape, d.width, d.height
		FROM cross_section_locations l
		JOIN cross_section_definitions d ON l.definition_id = d.id
		ORDER BY l.id`
	return queryRows(ctx, chk.DB, "cross_section_locations", q,
		[]string{"id", "friction_type", "shape", "width", "height"}, nil)
}

// profileShape classifies the profile of a location row. The last
// return is false when the definition is malformed; those rows are
// flagged by the definition checks instead.
func profileShape(row Row) (shape schema.CrossSectionShape, configuration Configuration, widths []float64, ok bool) {
	shapeVal, okShape := row.valueInt("shape")
	widthStr, okWidth := row.valueString("width")
	if !okShape || !okWidth || widthStr == "" {
		return 0, "", nil, false
	}
	widths, err := ParseFloatList(widthStr)
	if err != nil {
		return 0, "", nil, false
	}
	var heights []float64
	if s, okH := row.valueString("height"); okH && s != "" {
		heights, err = ParseFloatList(s)
		if err != nil {
			return 0, "", nil, false
		}
	}
	shape = schema.CrossSectionShape(shapeVal)
	_, _, configuration = Classify(shape, widths, heights)
	if configuration == "" {
		return 0, "", nil, false
	}
	return shape, configuration, widths, true
}

// nonDecreasing reports whether no width is smaller than its
// predecessor. Equal adjacent widths count as increasing.
func nonDecreasing(vs []float64) bool {
	for i := 1; i < len(vs); i++ {
		if vs[i] < vs[i-1] {
			return false
		}
	}
	return true
}

func isConveyance(frictionType int64) bool {
	for _, t := range schema.ConveyanceFrictionTypes {
		if frictionType == int64(t) {
			return true
		}
	}
	return false
}

// OpenIncreasingConveyanceFrictionCheck flags locations that use
// conveyance friction on a profile that is not open with monotonically
// increasing widths. Conveyance integration assumes such a profile.
type OpenIncreasingConveyanceFrictionCheck struct {
	BaseCheck
}

func OpenIncreasingConveyanceFriction(code int, opts ...Option) *OpenIncreasingConveyanceFrictionCheck {
	return &OpenIncreasingConveyanceFrictionCheck{
		newBase(code, schema.C("cross_section_locations", "friction_type"), opts...),
	}
}

func (c *OpenIncreasingConveyanceFrictionCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := locationProfiles(ctx, chk)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		frictionType, okF := row.valueInt("friction_type")
		if !okF || !isConveyance(frictionType) {
			continue
		}
		_, configuration, widths, ok := profileShape(row)
		if !ok {
			continue
		}
		if configuration != Open || !nonDecreasing(widths) {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *OpenIncreasingConveyanceFrictionCheck) Description() string {
	return c.describe("in the cross_section_locations, friction with conveyance can only be used in combination with an open, monotonically increasing cross-section profile")
}

// ConveyanceFrictionAdviceCheck suggests conveyance friction for
// tabulated profiles that are open with monotonically increasing
// widths. Single-width tables and non-tabulated shapes gain nothing
// from conveyance and are left alone.
type ConveyanceFrictionAdviceCheck struct {
	BaseCheck
}

func ConveyanceFrictionAdvice(code int, opts ...Option) *ConveyanceFrictionAdviceCheck {
	opts = append([]Option{WithLevel(Info)}, opts...)
	return &ConveyanceFrictionAdviceCheck{
		newBase(code, schema.C("cross_section_locations", "friction_type"), opts...),
	}
}

func (c *ConveyanceFrictionAdviceCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := locationProfiles(ctx, chk)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		frictionType, okF := row.valueInt("friction_type")
		if !okF || isConveyance(frictionType) {
			continue
		}
		shape, configuration, widths, ok := profileShape(row)
		if !ok {
			continue
		}
		switch shape {
		case schema.TabulatedRectangle, schema.TabulatedTrapezium, schema.TabulatedYZ:
		default:
			continue
		}
		if configuration == Open && len(widths) > 1 && nonDecreasing(widths) {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *ConveyanceFrictionAdviceCheck) Description() string {
	return c.describe("in the cross_section_locations, an open tabulated profile with monotonically increasing widths may benefit from friction with conveyance")
}

// ChannelConfigurationCheck flags cross-section locations on a channel
// that mixes open and closed profiles. The simulation requires a single
// configuration per channel.
type ChannelConfigurationCheck struct {
	BaseCheck
}

func ChannelConfiguration(code int, opts ...Option) *ChannelConfigurationCheck {
	return &ChannelConfigurationCheck{
		newBase(code, schema.C("cross_section_locations", "definition_id"), opts...),
	}
}

func (c *ChannelConfigurationCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	const q = `SELECT l.id, l.channel_id, d.shape, d.width, d.height
		FROM cross_section_locations l
		JOIN cross_section_definitions d ON l.definition_id = d.id
		WHERE l.channel_id IS NOT NULL
		ORDER BY l.id`
	rows, err := queryRows(ctx, chk.DB, "cross_section_locations", q,
		[]string{"id", "channel_id", "shape", "width", "height"}, nil)
	if err != nil {
		return nil, err
	}

	type location struct {
		row           Row
		configuration Configuration
	}
	byChannel := make(map[int64][]location)
	mixed := make(map[int64]bool)
	for _, row := range rows {
		channel, ok := row.valueInt("channel_id")
		if !ok {
			continue
		}
		_, configuration, _, ok := profileShape(row)
		if !ok {
			continue
		}
		locations := byChannel[channel]
		if len(locations) > 0 && locations[0].configuration != configuration {
			mixed[channel] = true
		}
		byChannel[channel] = append(locations, location{row, configuration})
	}

	var invalid []Row
	for channel, locations := range byChannel {
		if !mixed[channel] {
			continue
		}
		for _, l := range locations {
			invalid = append(invalid, l.row)
		}
	}
	sortRowsByID(invalid)
	return invalid, nil
}

func (c *ChannelConfigurationCheck) Description() string {
	return c.describe("the cross-sections on a channel should either all be open or all be closed")
}
