package engine

import (
	"fmt"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// JunctionState is the single-occupant record of one junction with its FIFO wait list.
// Invariants: occupied == (occupant != nil); the occupant is never queued; no car is
// queued twice.
type JunctionState struct {
	coord        Coord
	occupied     bool
	occupant     *Agent
	queue        []*Agent
	allowedExits []Direction
}

func newJunctionState(coord Coord, exits []Direction) *JunctionState {
	return &JunctionState{coord: coord, allowedExits: exits}
}

func (j *JunctionState) Coord() Coord     { return j.coord }
func (j *JunctionState) Occupied() bool   { return j.occupied }
func (j *JunctionState) Occupant() *Agent { return j.occupant }
func (j *JunctionState) QueueLen() int    { return len(j.queue) }

// Queue returns a copy of the wait list, head first
func (j *JunctionState) Queue() []*Agent {
	return append([]*Agent(nil), j.queue...)
}

// AllowedExits returns a copy of the precomputed exit set
func (j *JunctionState) AllowedExits() []Direction {
	return append([]Direction(nil), j.allowedExits...)
}

func (j *JunctionState) clear() {
	j.occupied = false
	j.occupant = nil
	j.queue = nil
}

// junctionFor returns the record at coord, creating it from the cell topology on first use
func (n *Network) junctionFor(coord Coord) *JunctionState {
	j, ok := n.junctions[coord]
	if !ok {
		var exits []Direction
		if cell := n.CellAtCoord(coord); cell != nil && cell.Kind == Junction {
			exits = n.exitsFor(coord)
		}
		j = newJunctionState(coord, exits)
		n.junctions[coord] = j
	}
	return j
}

// staleOccupant reports whether the occupant record points at a car that can no
// longer be crossing: respawned, gone from the roster, or holding no grant here.
func (n *Network) staleOccupant(j *JunctionState, a *Agent, roster Roster) bool {
	if a == nil {
		return true
	}
	if a.State == Respawned || !roster.Contains(a) {
		return true
	}
	return a.Claim == nil || a.Claim.Junction != j.coord || a.Claim.Status != ClaimGranted
}

func (n *Network) staleWaiter(j *JunctionState, a *Agent, roster Roster) bool {
	if a.State == Respawned || !roster.Contains(a) {
		return true
	}
	return a.Claim == nil || a.Claim.Junction != j.coord || a.Claim.Status != ClaimQueued
}

// RequestEntry asks for the junction at coord on behalf of a. It grants the
// junction when it is free (or held by a stale record) and otherwise appends a
// to the wait list. The car's Claim is updated to reflect the outcome.
func (n *Network) RequestEntry(coord Coord, a *Agent, roster Roster) bool {
	return n.request(coord, a, roster, true)
}

// tryAcquire is RequestEntry without joining the queue on failure
func (n *Network) tryAcquire(coord Coord, a *Agent, roster Roster) bool {
	return n.request(coord, a, roster, false)
}

func (n *Network) request(coord Coord, a *Agent, roster Roster, enqueue bool) bool {
	j := n.junctionFor(coord)

	if j.occupant == a {
		j.occupied = true
		if a.Claim == nil || a.Claim.Junction != coord || a.Claim.Status != ClaimGranted {
			a.Claim = &Claim{Junction: coord, Status: ClaimGranted, Since: n.now}
		}
		return true
	}

	if a.Claim != nil && a.Claim.Junction != coord && a.Claim.Status == ClaimQueued {
		n.Withdraw(a.Claim.Junction, a)
	}

	if j.occupant != nil && n.staleOccupant(j, j.occupant, roster) {
		n.diag.StaleEvictions++
		n.log.WithFields(log.Fields{"junction": coord, "occupant": j.occupant.ID}).Debug("evicting stale junction occupant")
		j.occupied = false
		j.occupant = nil
	}

	if j.occupant == nil {
		j.occupied = true
		j.occupant = a
		j.queue = lo.Without(j.queue, a)
		a.Claim = &Claim{Junction: coord, Status: ClaimGranted, Since: n.now}
		return true
	}

	if !enqueue {
		return false
	}
	if !lo.Contains(j.queue, a) {
		j.queue = append(j.queue, a)
	}
	if a.Claim == nil || a.Claim.Junction != coord || a.Claim.Status != ClaimQueued {
		a.Claim = &Claim{Junction: coord, Status: ClaimQueued, Since: n.now}
	}
	return false
}

// Release frees the junction at coord when a is its occupant or the occupant
// is stale, then promotes the head of the wait list. The promoted car becomes
// the occupant, returns to Driving and gets its exit pre-selected. Returns the
// promoted car, or nil.
func (n *Network) Release(coord Coord, a *Agent, roster Roster) *Agent {
	j, ok := n.junctions[coord]
	if !ok {
		return nil
	}
	if j.occupant != a && !n.staleOccupant(j, j.occupant, roster) {
		return nil
	}

	if a != nil && a.Claim != nil && a.Claim.Junction == coord && a.Claim.Status != ClaimQueued {
		a.Claim = nil
	}
	j.occupied = false
	j.occupant = nil

	j.queue = lo.Filter(j.queue, func(q *Agent, _ int) bool {
		return !n.staleWaiter(j, q, roster)
	})
	if len(j.queue) == 0 {
		return nil
	}

	next := j.queue[0]
	j.queue = j.queue[1:]
	j.occupied = true
	j.occupant = next
	next.Claim = &Claim{Junction: coord, Status: ClaimGranted, Since: n.now}
	next.State = Driving
	next.NextDirection = n.DecideNextDirection(coord)
	return next
}

// Withdraw removes a from the wait list at coord
func (n *Network) Withdraw(coord Coord, a *Agent) {
	if j, ok := n.junctions[coord]; ok {
		j.queue = lo.Without(j.queue, a)
	}
	if a.Claim != nil && a.Claim.Junction == coord && a.Claim.Status == ClaimQueued {
		a.Claim = nil
	}
}

// DecideNextDirection picks an exit uniformly at random. A junction without
// exits is a generation defect: East is returned and the defect is counted.
func (n *Network) DecideNextDirection(coord Coord) Direction {
	j, ok := n.junctions[coord]
	if !ok || len(j.allowedExits) == 0 {
		n.diag.DirectionFallbacks++
		n.log.WithField("junction", coord).Warn("no valid exit directions at junction, defaulting to east")
		return East
	}
	return j.allowedExits[n.rng.Intn(len(j.allowedExits))]
}

// occupantInside reports whether the junction's occupant is physically within the junction cell
func (n *Network) occupantInside(coord Coord) bool {
	j, ok := n.junctions[coord]
	if !ok || j.occupant == nil {
		return false
	}
	cell := n.CellAt(j.occupant.Position)
	return cell != nil && cell.Col == coord.Col && cell.Row == coord.Row
}

// ResetJunctions clears every occupancy record and wait list
func (n *Network) ResetJunctions() {
	for _, j := range n.junctions {
		j.clear()
	}
}

// CheckInvariants verifies the mutual-exclusion invariants of every junction
func (n *Network) CheckInvariants() error {
	for coord, j := range n.junctions {
		if j.occupied != (j.occupant != nil) {
			return fmt.Errorf("junction %v: occupied=%t but occupant set=%t", coord, j.occupied, j.occupant != nil)
		}
		seen := make(map[*Agent]bool, len(j.queue))
		for _, q := range j.queue {
			if q == j.occupant {
				return fmt.Errorf("junction %v: occupant %d is also queued", coord, q.ID)
			}
			if seen[q] {
				return fmt.Errorf("junction %v: car %d queued twice", coord, q.ID)
			}
			seen[q] = true
		}
	}
	return nil
}
