package checks

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/peterstace/simplefeatures/rtree"

	"github.com/floodtools/modelchecker/internal/schema"
)

func distanceXY(a, b geom.XY) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// pointXY extracts the XY of a point geometry stored in the named column.
func pointXY(row Row, name string) (geom.XY, bool) {
	g, ok := rowGeometry(row, name)
	if !ok || g.Type() != geom.TypePoint {
		return geom.XY{}, false
	}
	return g.MustAsPoint().XY()
}

// lineCoords extracts the coordinate sequence of a linestring geometry
// stored in the named column.
func lineCoords(row Row, name string) (geom.Sequence, bool) {
	g, ok := rowGeometry(row, name)
	if !ok || g.Type() != geom.TypeLineString {
		return geom.Sequence{}, false
	}
	seq := g.MustAsLineString().Coordinates()
	if seq.Length() < 2 {
		return geom.Sequence{}, false
	}
	return seq, true
}

// lineLocate returns the normalized position (0..1) along the linestring
// of the point's closest projection, plus the distance to that closest
// point.
func lineLocate(seq geom.Sequence, p geom.XY) (position, distance float64) {
	total := 0.0
	for i := 1; i < seq.Length(); i++ {
		total += distanceXY(seq.GetXY(i-1), seq.GetXY(i))
	}

	bestDist := math.Inf(1)
	bestAt := 0.0
	walked := 0.0
	for i := 1; i < seq.Length(); i++ {
		a, b := seq.GetXY(i-1), seq.GetXY(i)
		segLen := distanceXY(a, b)
		t := 0.0
		if segLen > 0 {
			t = ((p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)) / (segLen * segLen)
			t = math.Max(0, math.Min(1, t))
		}
		closest := geom.XY{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
		if d := distanceXY(p, closest); d < bestDist {
			bestDist = d
			bestAt = walked + t*segLen
		}
		walked += segLen
	}
	if total == 0 {
		return 0, bestDist
	}
	return bestAt / total, bestDist
}

// ConnectionNodesDistanceCheck flags pairs of connection nodes closer
// together than the solver's minimum node separation.
type ConnectionNodesDistanceCheck struct {
	BaseCheck
	minDistance float64
}

func ConnectionNodesDistance(code int, minDistance float64, opts ...Option) *ConnectionNodesDistanceCheck {
	opts = append([]Option{WithLevel(Warning)}, opts...)
	return &ConnectionNodesDistanceCheck{
		newBase(code, schema.C("connection_nodes", "the_geom"), opts...),
		minDistance,
	}
}

func (c *ConnectionNodesDistanceCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	rows, err := c.invalidRows(ctx, chk.DB, nil, Where("the_geom IS NOT NULL"))
	if err != nil {
		return nil, err
	}

	points := make([]geom.XY, len(rows))
	items := make([]rtree.BulkItem, 0, len(rows))
	for i, row := range rows {
		xy, ok := pointXY(row, "the_geom")
		if !ok {
			continue
		}
		points[i] = xy
		items = append(items, rtree.BulkItem{
			Box:      rtree.Box{MinX: xy.X, MinY: xy.Y, MaxX: xy.X, MaxY: xy.Y},
			RecordID: i,
		})
	}
	tree := rtree.BulkLoad(items)

	tooClose := make(map[int]bool)
	for _, item := range items {
		i := item.RecordID
		box := rtree.Box{
			MinX: points[i].X - c.minDistance,
			MinY: points[i].Y - c.minDistance,
			MaxX: points[i].X + c.minDistance,
			MaxY: points[i].Y + c.minDistance,
		}
		tree.RangeSearch(box, func(j int) error {
			if i != j && distanceXY(points[i], points[j]) < c.minDistance {
				tooClose[i] = true
				tooClose[j] = true
			}
			return nil
		})
	}

	var invalid []Row
	for i := range rows {
		if tooClose[i] {
			invalid = append(invalid, rows[i])
		}
	}
	return invalid, nil
}

func (c *ConnectionNodesDistanceCheck) Description() string {
	return c.describe(fmt.Sprintf("The connection_node is within %v m of another connection_node.", c.minDistance))
}

// ConnectionNodesLengthCheck flags structures whose start and end nodes
// are closer together than the minimum length.
type ConnectionNodesLengthCheck struct {
	BaseCheck
	minLength float64
}

func ConnectionNodesLength(code int, column *schema.Column, minLength float64, opts ...Option) *ConnectionNodesLengthCheck {
	opts = append([]Option{WithLevel(Warning)}, opts...)
	return &ConnectionNodesLengthCheck{newBase(code, column, opts...), minLength}
}

func (c *ConnectionNodesLengthCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	q := fmt.Sprintf(`SELECT t.id, s.the_geom AS start_geom, e.the_geom AS end_geom
		FROM %s t
		JOIN connection_nodes s ON t.connection_node_start_id = s.id
		JOIN connection_nodes e ON t.connection_node_end_id = e.id
		ORDER BY t.id`, c.column.Table)
	rows, err := queryRows(ctx, chk.DB, c.column.Table, q,
		[]string{"id", "start_geom", "end_geom"}, nil)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		start, okS := pointXY(row, "start_geom")
		end, okE := pointXY(row, "end_geom")
		if !okS || !okE {
			continue
		}
		if distanceXY(start, end) < c.minLength {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *ConnectionNodesLengthCheck) Description() string {
	return c.describe(fmt.Sprintf("The %s is shorter than %v m. A length of at least %v m is recommended to avoid timestep reduction.", c.column.Table, c.minLength, c.minLength))
}

// LinestringLocationCheck flags linear objects whose geometry does not
// start and end at their connection nodes. Reversed geometries are
// accepted; the grid generator flips them.
type LinestringLocationCheck struct {
	BaseCheck
	maxDistance float64
}

func LinestringLocation(code int, column *schema.Column, maxDistance float64, opts ...Option) *LinestringLocationCheck {
	opts = append([]Option{WithLevel(Warning)}, opts...)
	return &LinestringLocationCheck{newBase(code, column, opts...), maxDistance}
}

func (c *LinestringLocationCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	q := fmt.Sprintf(`SELECT t.id, t.%s, s.the_geom AS start_geom, e.the_geom AS end_geom
		FROM %s t
		JOIN connection_nodes s ON t.connection_node_start_id = s.id
		JOIN connection_nodes e ON t.connection_node_end_id = e.id
		WHERE t.%s IS NOT NULL
		ORDER BY t.id`, c.column.Name, c.column.Table, c.column.Name)
	rows, err := queryRows(ctx, chk.DB, c.column.Table, q,
		[]string{"id", c.column.Name, "start_geom", "end_geom"}, nil)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		seq, ok := lineCoords(row, c.column.Name)
		if !ok {
			continue
		}
		start, okS := pointXY(row, "start_geom")
		end, okE := pointXY(row, "end_geom")
		if !okS || !okE {
			continue
		}
		first := seq.GetXY(0)
		last := seq.GetXY(seq.Length() - 1)
		forward := distanceXY(first, start) <= c.maxDistance && distanceXY(last, end) <= c.maxDistance
		reversed := distanceXY(first, end) <= c.maxDistance && distanceXY(last, start) <= c.maxDistance
		if !forward && !reversed {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *LinestringLocationCheck) Description() string {
	return c.describe(fmt.Sprintf("The %s is not located on its connection nodes (tolerance %v m)", c.columnName(), c.maxDistance))
}

// CrossSectionLocationCheck flags cross-section locations that do not
// lie on their channel's geometry.
type CrossSectionLocationCheck struct {
	BaseCheck
	maxDistance float64
}

func CrossSectionLocation(code int, maxDistance float64, opts ...Option) *CrossSectionLocationCheck {
	opts = append([]Option{WithLevel(Warning)}, opts...)
	return &CrossSectionLocationCheck{
		newBase(code, schema.C("cross_section_locations", "the_geom"), opts...),
		maxDistance,
	}
}

func (c *CrossSectionLocationCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	const q = `SELECT l.id, l.the_geom, ch.the_geom AS channel_geom
		FROM cross_section_locations l
		JOIN channels ch ON l.channel_id = ch.id
		WHERE l.the_geom IS NOT NULL AND ch.the_geom IS NOT NULL
		ORDER BY l.id`
	rows, err := queryRows(ctx, chk.DB, "cross_section_locations", q,
		[]string{"id", "the_geom", "channel_geom"}, nil)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, row := range rows {
		p, okP := pointXY(row, "the_geom")
		seq, okL := lineCoords(row, "channel_geom")
		if !okP || !okL {
			continue
		}
		if _, dist := lineLocate(seq, p); dist > c.maxDistance {
			invalid = append(invalid, row)
		}
	}
	return invalid, nil
}

func (c *CrossSectionLocationCheck) Description() string {
	return c.describe(fmt.Sprintf("The cross_section_location is not located on its channel (tolerance %v m)", c.maxDistance))
}

// channelBreach is a potential breach projected onto its channel.
type channelBreach struct {
	row      Row
	channel  int64
	position float64
	distance float64
	length   float64
}

func projectedBreaches(ctx context.Context, chk *Context) ([]channelBreach, error) {
	const q = `SELECT b.id, b.channel_id, b.the_geom, ch.the_geom AS channel_geom
		FROM potential_breaches b
		JOIN channels ch ON b.channel_id = ch.id
		WHERE b.the_geom IS NOT NULL AND ch.the_geom IS NOT NULL
		ORDER BY b.id`
	rows, err := queryRows(ctx, chk.DB, "potential_breaches", q,
		[]string{"id", "channel_id", "the_geom", "channel_geom"}, nil)
	if err != nil {
		return nil, err
	}
	var breaches []channelBreach
	for _, row := range rows {
		channel, okC := row.valueInt("channel_id")
		seq, okL := lineCoords(row, "channel_geom")
		if !okC || !okL {
			continue
		}
		// The breach geometry is the line from the channel to the
		// breach location; its first point is the on-channel side.
		g, ok := rowGeometry(row, "the_geom")
		if !ok {
			continue
		}
		var p geom.XY
		switch g.Type() {
		case geom.TypePoint:
			p, ok = g.MustAsPoint().XY()
		case geom.TypeLineString:
			s := g.MustAsLineString().Coordinates()
			if s.Length() == 0 {
				ok = false
			} else {
				p = s.GetXY(0)
			}
		default:
			ok = false
		}
		if !ok {
			continue
		}
		length := 0.0
		for i := 1; i < seq.Length(); i++ {
			length += distanceXY(seq.GetXY(i-1), seq.GetXY(i))
		}
		position, distance := lineLocate(seq, p)
		breaches = append(breaches, channelBreach{row, channel, position, distance, length})
	}
	return breaches, nil
}

// PotentialBreachStartEndCheck flags breaches that sit close to, but
// not exactly on, the start or end of their channel.
type PotentialBreachStartEndCheck struct {
	BaseCheck
	minDistance float64
}

func PotentialBreachStartEnd(code int, minDistance float64, opts ...Option) *PotentialBreachStartEndCheck {
	return &PotentialBreachStartEndCheck{
		newBase(code, schema.C("potential_breaches", "the_geom"), opts...),
		minDistance,
	}
}

func (c *PotentialBreachStartEndCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	breaches, err := projectedBreaches(ctx, chk)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, b := range breaches {
		at := b.position * b.length
		fromEnd := b.length - at
		if (at > 0 && at < c.minDistance) || (fromEnd > 0 && fromEnd < c.minDistance) {
			invalid = append(invalid, b.row)
		}
	}
	return invalid, nil
}

func (c *PotentialBreachStartEndCheck) Description() string {
	return c.describe(fmt.Sprintf("The potential breach must be exactly on or at least %v m from the start or end of its channel.", c.minDistance))
}

// PotentialBreachInterdistanceCheck flags breaches on the same channel
// that sit closer to their predecessor along the channel than the
// minimum, unless they coincide exactly. Only neighbouring breaches
// are compared and only the later of the pair is reported.
type PotentialBreachInterdistanceCheck struct {
	BaseCheck
	minDistance float64
}

func PotentialBreachInterdistance(code int, minDistance float64, opts ...Option) *PotentialBreachInterdistanceCheck {
	return &PotentialBreachInterdistanceCheck{
		newBase(code, schema.C("potential_breaches", "the_geom"), opts...),
		minDistance,
	}
}

func (c *PotentialBreachInterdistanceCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	breaches, err := projectedBreaches(ctx, chk)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(breaches, func(i, j int) bool {
		if breaches[i].channel != breaches[j].channel {
			return breaches[i].channel < breaches[j].channel
		}
		return breaches[i].position < breaches[j].position
	})

	var invalid []Row
	for i := 1; i < len(breaches); i++ {
		prev, cur := breaches[i-1], breaches[i]
		if prev.channel != cur.channel || prev.position == cur.position {
			continue
		}
		if (cur.position-prev.position)*cur.length < c.minDistance {
			invalid = append(invalid, cur.row)
		}
	}
	sortRowsByID(invalid)
	return invalid, nil
}

func (c *PotentialBreachInterdistanceCheck) Description() string {
	return c.describe(fmt.Sprintf("The potential breach must be at least %v m from other potential breaches on the same channel (or exactly on top of one).", c.minDistance))
}

// PotentialBreachLocationCheck flags breaches whose on-channel point
// does not actually lie on the channel geometry.
type PotentialBreachLocationCheck struct {
	BaseCheck
	maxDistance float64
}

func PotentialBreachLocation(code int, maxDistance float64, opts ...Option) *PotentialBreachLocationCheck {
	return &PotentialBreachLocationCheck{
		newBase(code, schema.C("potential_breaches", "the_geom"), opts...),
		maxDistance,
	}
}

func (c *PotentialBreachLocationCheck) GetInvalid(ctx context.Context, chk *Context) ([]Row, error) {
	breaches, err := projectedBreaches(ctx, chk)
	if err != nil {
		return nil, err
	}
	var invalid []Row
	for _, b := range breaches {
		if b.distance > c.maxDistance {
			invalid = append(invalid, b.row)
		}
	}
	return invalid, nil
}

func (c *PotentialBreachLocationCheck) Description() string {
	return c.describe(fmt.Sprintf("The potential breach must be on its channel (within a tolerance of %v m).", c.maxDistance))
}
