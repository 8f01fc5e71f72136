package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidLayout   = errors.New("invalid layout")
	ErrUnknownJunction = errors.New("unknown junction")
)

// Network is the road topology plus the junction registry. Cells never change
// after NewNetwork returns (DebugView aside); junction records change only
// through RequestEntry, Release and Withdraw.
type Network struct {
	cols, rows  int
	params      Params
	layout      []string
	cells       [][]Cell // [row][col]
	junctions   map[Coord]*JunctionState
	spawnPoints []Vec

	rng   *rand.Rand
	log   log.FieldLogger
	diag  Diagnostics
	debug bool
	now   int64
}

// Option customizes a Network
type Option func(*Network)

// WithRand injects the random source used for turn and spawn decisions
func WithRand(r *rand.Rand) Option {
	return func(n *Network) {
		if r != nil {
			n.rng = r
		}
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(l log.FieldLogger) Option {
	return func(n *Network) {
		if l != nil {
			n.log = l
		}
	}
}

// NewNetwork builds the cell grid and junction registry from a layout
func NewNetwork(layout []string, params Params, opts ...Option) (*Network, error) {
	if err := ValidateLayout(layout); err != nil {
		return nil, err
	}

	n := &Network{
		rows:      len(layout),
		cols:      len(layout[0]),
		params:    params,
		layout:    append([]string(nil), layout...),
		junctions: make(map[Coord]*JunctionState),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}

	cs := params.CellSize
	n.cells = make([][]Cell, n.rows)
	for r, line := range layout {
		n.cells[r] = make([]Cell, n.cols)
		for c := 0; c < n.cols; c++ {
			cell := Cell{
				Kind:   Empty,
				Col:    c,
				Row:    r,
				Center: Vec{X: float64(c)*cs + cs/2, Y: float64(r)*cs + cs/2},
			}
			switch line[c] {
			case CharEast:
				cell.Kind, cell.Flow = RoadHorizontal, WestToEast
			case CharWest:
				cell.Kind, cell.Flow = RoadHorizontal, EastToWest
			case CharSouth:
				cell.Kind, cell.Flow = RoadVertical, NorthToSouth
			case CharNorth:
				cell.Kind, cell.Flow = RoadVertical, SouthToNorth
			case CharJunction:
				cell.Kind = Junction
			case CharBuilding:
				cell.Kind = Building
			}
			n.cells[r][c] = cell
		}
	}

	for r := range n.cells {
		for c := range n.cells[r] {
			if n.cells[r][c].Kind != Junction {
				continue
			}
			coord := Coord{Col: c, Row: r}
			j := newJunctionState(coord, n.exitsFor(coord))
			if len(j.allowedExits) == 0 {
				n.diag.EmptyExitJunctions++
				n.log.WithField("junction", coord).Warn("junction has no exit directions")
			}
			n.junctions[coord] = j
		}
	}

	n.computeSpawnPoints()
	return n, nil
}

// ValidateLayout checks that a layout is a non-empty rectangle of known
// characters with no two junction cells side by side. Adjacent junctions form
// clusters whose diagonal centres block each other forever.
func ValidateLayout(layout []string) error {
	if len(layout) == 0 || len(layout[0]) == 0 {
		return fmt.Errorf("%w: layout is empty", ErrInvalidLayout)
	}
	width := len(layout[0])
	for r, line := range layout {
		if len(line) != width {
			return fmt.Errorf("%w: row %d has %d cells, expected %d", ErrInvalidLayout, r, len(line), width)
		}
		for c := 0; c < len(line); c++ {
			if !isLayoutChar(line[c]) {
				return fmt.Errorf("%w: unknown character '%c' at row %d, col %d", ErrInvalidLayout, line[c], r, c)
			}
		}
	}
	for r, line := range layout {
		for c := 0; c < width; c++ {
			if line[c] != CharJunction {
				continue
			}
			if c+1 < width && line[c+1] == CharJunction {
				return fmt.Errorf("%w: adjacent junctions at row %d, cols %d and %d", ErrInvalidLayout, r, c, c+1)
			}
			if r+1 < len(layout) && layout[r+1][c] == CharJunction {
				return fmt.Errorf("%w: adjacent junctions at col %d, rows %d and %d", ErrInvalidLayout, c, r, r+1)
			}
		}
	}
	return nil
}

func isLayoutChar(b byte) bool {
	for i := 0; i < len(layoutAlphabet); i++ {
		if layoutAlphabet[i] == b {
			return true
		}
	}
	return false
}

// exitsFor derives the exit set of a junction: heading d is allowed when the
// neighbour in direction d is a road flowing in d.
func (n *Network) exitsFor(coord Coord) []Direction {
	var exits []Direction
	for _, d := range Directions {
		dc, dr := d.Step()
		c, r := coord.Col+dc, coord.Row+dr
		if !n.inGrid(c, r) {
			continue
		}
		cell := &n.cells[r][c]
		if h, ok := cell.Flow.Heading(); ok && cell.IsRoad() && h == d {
			exits = append(exits, d)
		}
	}
	return exits
}

// computeSpawnPoints collects boundary cells whose road flows into the field
func (n *Network) computeSpawnPoints() {
	cs := n.params.CellSize
	n.spawnPoints = nil
	for r := 0; r < n.rows; r++ {
		if cell := n.cells[r][0]; cell.Kind == RoadHorizontal && cell.Flow == WestToEast {
			n.spawnPoints = append(n.spawnPoints, Vec{X: 0, Y: cell.Center.Y})
		}
	}
	for r := 0; r < n.rows; r++ {
		if cell := n.cells[r][n.cols-1]; cell.Kind == RoadHorizontal && cell.Flow == EastToWest {
			n.spawnPoints = append(n.spawnPoints, Vec{X: float64(n.cols-1) * cs, Y: cell.Center.Y})
		}
	}
	for c := 0; c < n.cols; c++ {
		if cell := n.cells[0][c]; cell.Kind == RoadVertical && cell.Flow == NorthToSouth {
			n.spawnPoints = append(n.spawnPoints, Vec{X: cell.Center.X, Y: 0})
		}
	}
	for c := 0; c < n.cols; c++ {
		if cell := n.cells[n.rows-1][c]; cell.Kind == RoadVertical && cell.Flow == SouthToNorth {
			n.spawnPoints = append(n.spawnPoints, Vec{X: cell.Center.X, Y: float64(n.rows-1) * cs})
		}
	}
	if len(n.spawnPoints) == 0 {
		n.log.Warn("no boundary spawn points in layout")
	}
}

func (n *Network) inGrid(c, r int) bool {
	return c >= 0 && c < n.cols && r >= 0 && r < n.rows
}

// CellAt maps a continuous coordinate to its grid cell, or nil when out of bounds
func (n *Network) CellAt(p Vec) *Cell {
	c := int(math.Floor(p.X / n.params.CellSize))
	r := int(math.Floor(p.Y / n.params.CellSize))
	if !n.inGrid(c, r) {
		return nil
	}
	return &n.cells[r][c]
}

// CellAtCoord returns the cell at a grid coordinate, or nil when out of bounds
func (n *Network) CellAtCoord(coord Coord) *Cell {
	if !n.inGrid(coord.Col, coord.Row) {
		return nil
	}
	return &n.cells[coord.Row][coord.Col]
}

// AdjacentCell returns the neighbor one step away in a heading, or nil at the boundary
func (n *Network) AdjacentCell(cell *Cell, d Direction) *Cell {
	if cell == nil {
		return nil
	}
	dc, dr := d.Step()
	return n.CellAtCoord(Coord{Col: cell.Col + dc, Row: cell.Row + dr})
}

// OutOfPlay reports whether a position left the playing field or sits in an obstacle
func (n *Network) OutOfPlay(p Vec) bool {
	w, h := n.Size()
	if p.X < 0 || p.X > w || p.Y < 0 || p.Y > h {
		return true
	}
	cell := n.CellAt(p)
	return cell == nil || !cell.Passable()
}

// Size returns the playing field size in world units
func (n *Network) Size() (width, height float64) {
	return float64(n.cols) * n.params.CellSize, float64(n.rows) * n.params.CellSize
}

func (n *Network) Cols() int          { return n.cols }
func (n *Network) Rows() int          { return n.rows }
func (n *Network) Params() Params     { return n.params }
func (n *Network) Layout() []string   { return append([]string(nil), n.layout...) }
func (n *Network) SpawnPoints() []Vec { return append([]Vec(nil), n.spawnPoints...) }

// Diagnostics returns a copy of the liveness and defect counters
func (n *Network) Diagnostics() Diagnostics { return n.diag }

// SetDebug toggles cell annotation by cars
func (n *Network) SetDebug(on bool) {
	n.debug = on
	if !on {
		for r := range n.cells {
			for c := range n.cells[r] {
				n.cells[r][c].DebugView = ""
			}
		}
	}
}

// Debug reports whether cell annotation is on
func (n *Network) Debug() bool { return n.debug }

// Junction returns the junction record at a coordinate
func (n *Network) Junction(coord Coord) (*JunctionState, bool) {
	j, ok := n.junctions[coord]
	return j, ok
}

// JunctionCoords lists all junction coordinates in row-major order
func (n *Network) JunctionCoords() []Coord {
	coords := make([]Coord, 0, len(n.junctions))
	for c := range n.junctions {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, k int) bool {
		if coords[i].Row != coords[k].Row {
			return coords[i].Row < coords[k].Row
		}
		return coords[i].Col < coords[k].Col
	})
	return coords
}

// CountKind counts the cells of one kind
func (n *Network) CountKind(kind CellKind) int {
	count := 0
	for r := range n.cells {
		for c := range n.cells[r] {
			if n.cells[r][c].Kind == kind {
				count++
			}
		}
	}
	return count
}
