package engine

import "math"

// CellKind represents the different kinds of grid cells
type CellKind string

const (
	Empty          CellKind = "empty"
	RoadHorizontal CellKind = "road_horizontal"
	RoadVertical   CellKind = "road_vertical"
	Junction       CellKind = "junction"
	Building       CellKind = "building"
)

// Layout characters
const (
	CharEmpty      = '.'
	CharEast       = '>'
	CharWest       = '<'
	CharSouth      = 'v'
	CharNorth      = '^'
	CharJunction   = '+'
	CharBuilding   = 'B'
	layoutAlphabet = ".><v^+B"
)

// Direction is a heading on the grid
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"

	// NoDirection marks an unset nextDirection
	NoDirection Direction = ""
)

// Directions lists every heading in a stable order
var Directions = []Direction{North, East, South, West}

// Vector returns the unit vector for the heading. Screen coordinates: y grows southwards.
func (d Direction) Vector() Vec {
	switch d {
	case North:
		return Vec{0, -1}
	case South:
		return Vec{0, 1}
	case West:
		return Vec{-1, 0}
	default:
		return Vec{1, 0}
	}
}

// Step returns the grid offset for one step in the heading
func (d Direction) Step() (dc, dr int) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case West:
		return -1, 0
	case East:
		return 1, 0
	}
	return 0, 0
}

// Valid reports whether d is one of the four headings
func (d Direction) Valid() bool {
	return d == North || d == South || d == East || d == West
}

// Flow is the travel sense of a road cell
type Flow string

const (
	WestToEast   Flow = "west_to_east"
	EastToWest   Flow = "east_to_west"
	NorthToSouth Flow = "north_to_south"
	SouthToNorth Flow = "south_to_north"
	NoFlow       Flow = ""
)

// Heading returns the direction a car drives along a road with this flow
func (f Flow) Heading() (Direction, bool) {
	switch f {
	case WestToEast:
		return East, true
	case EastToWest:
		return West, true
	case NorthToSouth:
		return South, true
	case SouthToNorth:
		return North, true
	}
	return NoDirection, false
}

// Coord is a (col,row) grid coordinate, used as the junction registry key
type Coord struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Vec is a continuous 2D coordinate
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec) Add(o Vec) Vec       { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec       { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(s float64) Vec { return Vec{v.X * s, v.Y * s} }
func (v Vec) Dot(o Vec) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec) Len() float64        { return math.Hypot(v.X, v.Y) }
func (v Vec) Dist(o Vec) float64  { return v.Sub(o).Len() }

// Norm returns the unit vector, or the zero vector for a zero-length input
func (v Vec) Norm() Vec {
	l := v.Len()
	if l == 0 {
		return Vec{}
	}
	return Vec{v.X / l, v.Y / l}
}

// Cell represents a single grid square. Cells are read-only after the network
// is built except for DebugView, which renderers may set freely.
type Cell struct {
	Kind      CellKind `json:"kind"`
	Flow      Flow     `json:"flow,omitempty"`
	Col       int      `json:"col"`
	Row       int      `json:"row"`
	Center    Vec      `json:"center"`
	DebugView string   `json:"debug_view,omitempty"`
}

// Coord returns the grid coordinate of the cell
func (c *Cell) Coord() Coord {
	return Coord{Col: c.Col, Row: c.Row}
}

// IsRoad reports whether the cell is a plain road segment
func (c *Cell) IsRoad() bool {
	return c.Kind == RoadHorizontal || c.Kind == RoadVertical
}

// Passable reports whether cars may occupy the cell
func (c *Cell) Passable() bool {
	return c.Kind != Building
}

// AgentState is the driving state of a car
type AgentState string

const (
	Driving   AgentState = "driving"
	Waiting   AgentState = "waiting"
	Collision AgentState = "collision"
	Respawned AgentState = "respawned"
)

// ClaimStatus qualifies the relation between a car and a junction
type ClaimStatus string

const (
	// ClaimQueued: the car sits in the junction's wait queue
	ClaimQueued ClaimStatus = "queued"
	// ClaimGranted: the car is the junction's current occupant
	ClaimGranted ClaimStatus = "granted"
	// ClaimOverride: the car crosses on the stuck-agent override without being the occupant
	ClaimOverride ClaimStatus = "override"
)

// Claim ties a car to one junction. Since is the tick the claim reached its status.
type Claim struct {
	Junction Coord       `json:"junction"`
	Status   ClaimStatus `json:"status"`
	Since    int64       `json:"since"`
}

// Params holds the tunables of the traffic engine
type Params struct {
	CellSize        float64 `json:"cell_size"`
	RoadWidth       float64 `json:"road_width"`
	MaxSpeed        float64 `json:"max_speed"`
	SensorRange     float64 `json:"sensor_range"`
	MinSafeDistance float64 `json:"min_safe_distance"`
	StuckThreshold  int     `json:"stuck_threshold"`
	JunctionTimeout int64   `json:"junction_timeout"`
	CenterSnap      float64 `json:"center_snap"`
}

const (
	DefaultCellSize        = 20
	DefaultMaxSpeed        = 2
	DefaultStuckThreshold  = 50
	DefaultJunctionTimeout = 60
	DefaultCenterSnap      = 2

	// forwardCone is the minimum cosine between heading and bearing to another car
	forwardCone = 0.7
	// overlapDistance is how close two cars must be to count as stacked
	overlapDistance = 1e-6
)

// DefaultParams derives the engine tunables from a cell size
func DefaultParams(cellSize float64) Params {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return Params{
		CellSize:        cellSize,
		RoadWidth:       cellSize,
		MaxSpeed:        DefaultMaxSpeed,
		SensorRange:     cellSize * 3,
		MinSafeDistance: cellSize,
		StuckThreshold:  DefaultStuckThreshold,
		JunctionTimeout: DefaultJunctionTimeout,
		CenterSnap:      DefaultCenterSnap,
	}
}
