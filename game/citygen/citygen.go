package citygen

import (
	"math/rand"
	"sort"
	"time"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
)

const (
	maxPositionAttempts = 12
	startAtCrossing     = 0.1
	endAtCrossing       = 0.3
	roadVariation       = 0.3
	buildingVariation   = 0.2
)

// Knobs tunes the generator. Zero values pick the defaults.
type Knobs struct {
	// BaseRoads is the road count before variation; default 20-34
	BaseRoads int
	// BaseBuildings is the building count before variation; default 8
	BaseBuildings int
}

type generator struct {
	cols, rows int
	rng        *rand.Rand
	cells      [][]byte
	used       map[lineKey]bool
}

type lineKey struct {
	horizontal bool
	pos        int
}

type area struct {
	minRow, maxRow int
	minCol, maxCol int
}

func (a area) width() int  { return a.maxCol - a.minCol + 1 }
func (a area) height() int { return a.maxRow - a.minRow + 1 }

// Generate builds a cols x rows layout: one-way roads that never run next to
// a parallel road, partial roads that may start or end at a crossing,
// junctions wherever two roads cross, and buildings in the largest empty areas.
func Generate(cols, rows int, rng *rand.Rand, knobs Knobs) []string {
	g := &generator{
		cols:  cols,
		rows:  rows,
		rng:   rng,
		cells: make([][]byte, rows),
		used:  make(map[lineKey]bool),
	}
	for r := range g.cells {
		g.cells[r] = make([]byte, cols)
		for c := range g.cells[r] {
			g.cells[r][c] = engine.CharEmpty
		}
	}

	base := knobs.BaseRoads
	if base <= 0 {
		base = 20 + rng.Intn(15)
	}
	numRoads := int(float64(base) + rng.Float64()*float64(base)*roadVariation)
	for i := 0; i < numRoads; i++ {
		g.addRoad()
	}

	buildings := knobs.BaseBuildings
	if buildings <= 0 {
		buildings = engine.DefaultBuilding
	}
	g.addBuildings(buildings)

	layout := make([]string, rows)
	for r := range g.cells {
		layout[r] = string(g.cells[r])
	}
	return layout
}

func (g *generator) addRoad() {
	horizontal := g.rng.Float64() < 0.5
	forward := g.rng.Float64() < 0.5

	limit := g.cols
	if horizontal {
		limit = g.rows
	}
	if limit < 3 {
		return
	}

	pos, ok := 0, false
	for attempt := 0; attempt < maxPositionAttempts; attempt++ {
		pos = g.rng.Intn(limit - 1)
		if pos < 1 {
			pos = 1
		}
		if !g.tooClose(pos, horizontal, limit) {
			ok = true
			break
		}
	}
	if !ok {
		return
	}
	g.used[lineKey{horizontal, pos}] = true

	if horizontal {
		ch := byte(engine.CharWest)
		if forward {
			ch = engine.CharEast
		}
		g.layRoad(g.cols, ch, func(i int) *byte { return &g.cells[pos][i] }, isVertical)
	} else {
		ch := byte(engine.CharNorth)
		if forward {
			ch = engine.CharSouth
		}
		g.layRoad(g.rows, ch, func(i int) *byte { return &g.cells[i][pos] }, isHorizontal)
	}
}

// tooClose reports whether a parallel road already runs at pos or next to it
func (g *generator) tooClose(pos int, horizontal bool, limit int) bool {
	if pos < 0 || pos >= limit {
		return true
	}
	for d := -1; d <= 1; d++ {
		if g.used[lineKey{horizontal, pos + d}] {
			return true
		}
	}
	return false
}

// layRoad draws one road along a line of n cells. The road may start or end
// at a cell crossed by a perpendicular road; crossings become junctions.
func (g *generator) layRoad(n int, ch byte, at func(int) *byte, crossing func(byte) bool) {
	start, end := 0, n-1
	for i := 0; i < n; i++ {
		if !crossing(*at(i)) {
			continue
		}
		if g.rng.Float64() < startAtCrossing {
			start = i
		}
		if g.rng.Float64() < endAtCrossing && start != i {
			end = i
		}
	}
	if end < start {
		start, end = end, start
	}

	for i := start; i <= end; i++ {
		cell := at(i)
		switch {
		case crossing(*cell), *cell == engine.CharJunction:
			*cell = engine.CharJunction
		default:
			*cell = ch
		}
	}
}

func isHorizontal(b byte) bool { return b == engine.CharEast || b == engine.CharWest }
func isVertical(b byte) bool   { return b == engine.CharSouth || b == engine.CharNorth }

// addBuildings fills the largest empty areas with one building each
func (g *generator) addBuildings(base int) {
	areas := g.emptyAreas()
	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].width()*areas[i].height() > areas[j].width()*areas[j].height()
	})

	variation := float64(base) * buildingVariation
	target := int(float64(base) + g.rng.Float64()*variation*2 - variation)

	placed := 0
	for _, a := range areas {
		if placed >= target {
			break
		}
		w, h := a.width(), a.height()
		if w > h {
			w = min(w, h+2)
		} else {
			h = min(h, w+2)
		}
		row := a.minRow + g.rng.Intn(a.height()-h+1)
		col := a.minCol + g.rng.Intn(a.width()-w+1)

		for r := row; r < row+h; r++ {
			for c := col; c < col+w; c++ {
				if g.cells[r][c] == engine.CharEmpty {
					g.cells[r][c] = engine.CharBuilding
				}
			}
		}
		placed++
	}
}

// emptyAreas flood-fills the empty cells and returns the bounding box of every
// region at least two cells wide and two cells tall
func (g *generator) emptyAreas() []area {
	visited := make([][]bool, g.rows)
	for r := range visited {
		visited[r] = make([]bool, g.cols)
	}

	var areas []area
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if visited[r][c] || g.cells[r][c] != engine.CharEmpty {
				continue
			}
			a := area{minRow: r, maxRow: r, minCol: c, maxCol: c}
			queue := [][2]int{{r, c}}
			visited[r][c] = true
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				a.minRow, a.maxRow = min(a.minRow, cur[0]), max(a.maxRow, cur[0])
				a.minCol, a.maxCol = min(a.minCol, cur[1]), max(a.maxCol, cur[1])

				for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nr, nc := cur[0]+d[0], cur[1]+d[1]
					if nr < 0 || nr >= g.rows || nc < 0 || nc >= g.cols {
						continue
					}
					if visited[nr][nc] || g.cells[nr][nc] != engine.CharEmpty {
						continue
					}
					visited[nr][nc] = true
					queue = append(queue, [2]int{nr, nc})
				}
			}
			if a.width() >= 2 && a.height() >= 2 {
				areas = append(areas, a)
			}
		}
	}
	return areas
}

// Prepare returns config unchanged when it carries a layout. Otherwise it
// returns a copy with a layout generated from Cols, Rows and the generator
// knobs, seeded by config.Seed when set.
func Prepare(config *engine.SimConfig) *engine.SimConfig {
	if len(config.Layout) > 0 {
		return config
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	prepared := *config
	prepared.Layout = Generate(config.Cols, config.Rows, rand.New(rand.NewSource(seed)), Knobs{
		BaseRoads:     config.BaseRoads,
		BaseBuildings: config.BaseBuildings,
	})
	return &prepared
}
