package engine

import "math"

// SpawnMode selects the candidate positions of FindSafeSpawn
type SpawnMode int

const (
	// SpawnBoundary uses the inbound road ends on the field edges
	SpawnBoundary SpawnMode = iota
	// SpawnAnyRoad uses the centre of every plain road cell, for initial population
	SpawnAnyRoad
)

// FindSafeSpawn tries the candidate positions in random order and returns the
// first one no car is crowding
func (n *Network) FindSafeSpawn(roster Roster, mode SpawnMode) (Vec, bool) {
	candidates := n.spawnPoints
	if mode == SpawnAnyRoad {
		candidates = n.roadCenters()
	}
	if len(candidates) == 0 {
		return Vec{}, false
	}
	for _, i := range n.rng.Perm(len(candidates)) {
		if !n.isOccupied(candidates[i], roster) {
			return candidates[i], true
		}
	}
	return Vec{}, false
}

// isOccupied reports whether a car is within half a cell in both axes of p,
// or within one road width of p on the same kind of cell
func (n *Network) isOccupied(p Vec, roster Roster) bool {
	cell := n.CellAt(p)
	if cell == nil {
		return true
	}
	half := n.params.CellSize / 2
	for _, a := range roster {
		if math.Abs(a.Position.X-p.X) < half && math.Abs(a.Position.Y-p.Y) < half {
			return true
		}
		other := n.CellAt(a.Position)
		if other != nil && other.Kind == cell.Kind && a.Position.Dist(p) < n.params.RoadWidth {
			return true
		}
	}
	return false
}

func (n *Network) roadCenters() []Vec {
	var centers []Vec
	for r := range n.cells {
		for c := range n.cells[r] {
			if n.cells[r][c].IsRoad() {
				centers = append(centers, n.cells[r][c].Center)
			}
		}
	}
	return centers
}
