package schema

// CrossSectionShape enumerates the supported cross-section profile shapes.
type CrossSectionShape int

const (
	ClosedRectangle    CrossSectionShape = 0
	Rectangle          CrossSectionShape = 1
	Circle             CrossSectionShape = 2
	Egg                CrossSectionShape = 3
	TabulatedRectangle CrossSectionShape = 5
	TabulatedTrapezium CrossSectionShape = 6
	TabulatedYZ        CrossSectionShape = 7
	InvertedEgg        CrossSectionShape = 8
)

// CrossSectionShapes lists every valid shape value.
var CrossSectionShapes = []int{0, 1, 2, 3, 5, 6, 7, 8}

// FrictionType enumerates friction formulations.
type FrictionType int

const (
	FrictionChezy             FrictionType = 1
	FrictionManning           FrictionType = 2
	FrictionChezyConveyance   FrictionType = 3
	FrictionManningConveyance FrictionType = 4
)

// ConveyanceFrictionTypes are the friction types that include conveyance.
var ConveyanceFrictionTypes = []int{int(FrictionChezyConveyance), int(FrictionManningConveyance)}

// CalculationType enumerates 1D object calculation types.
type CalculationType int

const (
	CalculationEmbedded        CalculationType = 100
	CalculationStandalone      CalculationType = 101
	CalculationConnected       CalculationType = 102
	CalculationDoubleConnected CalculationType = 105
)

// CrestType enumerates weir/orifice crest formulations.
type CrestType int

const (
	BroadCrested CrestType = 3
	ShortCrested CrestType = 4
)

// InflowType enumerates the 0D inflow modes in the global settings.
type InflowType int

const (
	NoInflow          InflowType = 0
	ImperviousSurface InflowType = 1
	Surface           InflowType = 2
)

// PumpType enumerates on which side a pump measures its levels.
type PumpType int

const (
	SuctionSide  PumpType = 1
	DeliverySide PumpType = 2
)

// BoundaryType enumerates 1D boundary condition types.
type BoundaryType int

const (
	BoundaryWaterlevel BoundaryType = 1
	BoundaryVelocity   BoundaryType = 2
	BoundaryDischarge  BoundaryType = 3
	BoundaryRiemann    BoundaryType = 4
	BoundarySommerfeld BoundaryType = 5
)

// Enum value sets used by the declared columns.
var (
	calculationTypes     = []int{100, 101, 102, 105}
	calculationTypesNode = []int{0, 1, 2, 100, 101, 102, 105}
	frictionTypes        = []int{1, 2, 3, 4}
	crestTypes           = []int{3, 4}
	inflowTypes          = []int{0, 1, 2}
	pumpTypes            = []int{1, 2}
	boundaryTypes        = []int{1, 2, 3, 4, 5}
	zoomCategories       = []int{0, 1, 2, 3, 4, 5}
	sewerageTypes        = []int{0, 1, 2, 3, 4, 5, 6, 7}
	materials            = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	surfaceClasses       = []int{0, 1, 2}
)
