package engine

import (
	"errors"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var ErrAgentNotFound = errors.New("agent not found")

// Agent is a car. Only its own Update mutates it, apart from junction
// promotion in Release which hands it the junction and its next exit.
type Agent struct {
	ID            int        `json:"id"`
	Position      Vec        `json:"position"`
	Direction     Direction  `json:"direction"`
	NextDirection Direction  `json:"next_direction,omitempty"`
	Speed         float64    `json:"speed"`
	MaxSpeed      float64    `json:"max_speed"`
	State         AgentState `json:"state"`
	Claim         *Claim     `json:"claim,omitempty"`
	WaitingCycles int        `json:"waiting_cycles"`
	LastMovedTick int64      `json:"last_moved_tick"`
}

// Roster is the full set of cars of a simulation
type Roster []*Agent

// Contains reports whether a belongs to the roster
func (r Roster) Contains(a *Agent) bool {
	return lo.Contains(r, a)
}

// ByID finds a car by its identifier
func (r Roster) ByID(id int) (*Agent, bool) {
	return lo.Find(r, func(a *Agent) bool { return a.ID == id })
}

// NewAgent places a car at pos, aligned to the road it stands on
func NewAgent(id int, pos Vec, net *Network, tick int64) *Agent {
	a := &Agent{
		ID:            id,
		Position:      pos,
		MaxSpeed:      net.params.MaxSpeed,
		Speed:         net.params.MaxSpeed,
		State:         Driving,
		LastMovedTick: tick,
	}
	a.resolveHeading(net)
	return a
}

// IsWaiting reports whether the car is standing still this tick
func (a *Agent) IsWaiting() bool {
	return a.State == Waiting || a.State == Collision
}

// resolveHeading snaps the car onto the centre line of its road and adopts the
// road's flow. Anything else is a generation defect and falls back to East.
func (a *Agent) resolveHeading(net *Network) {
	cell := net.CellAt(a.Position)
	if cell != nil && cell.IsRoad() {
		if h, ok := cell.Flow.Heading(); ok {
			if cell.Kind == RoadHorizontal {
				a.Position.Y = cell.Center.Y
			} else {
				a.Position.X = cell.Center.X
			}
			a.Direction = h
			return
		}
	}
	net.diag.HeadingFallbacks++
	net.log.WithFields(log.Fields{"agent": a.ID, "x": a.Position.X, "y": a.Position.Y}).Warn("no road heading at position, defaulting to east")
	a.Direction = East
}

// Update advances the car by one tick
func (a *Agent) Update(net *Network, roster Roster, tick int64) {
	net.now = tick
	p := net.params

	// parked after a failed relocation
	if net.OutOfPlay(a.Position) {
		a.respawn(net, roster, tick)
		return
	}

	current := net.CellAt(a.Position)

	if a.IsWaiting() && a.LastMovedTick < tick-1 {
		a.WaitingCycles++
		net.observeWaiting(a.WaitingCycles)
		if a.WaitingCycles > p.StuckThreshold && a.recover(net, roster) {
			return
		}
	}

	if a.holdsJunction() && tick-a.lastProgress() > p.JunctionTimeout {
		a.forceRelease(net, roster)
	}

	if other := Detect(a, roster, net); other != nil {
		a.State = Collision
		if net.debug {
			if cell := net.CellAt(other.Position); cell != nil {
				cell.DebugView = "mark"
			}
		}
		return
	}
	if a.State == Collision || a.State == Respawned {
		a.State = Driving
	}

	if a.State == Waiting && a.Claim == nil && !nearStoppedTraffic(a, roster, net) {
		a.State = Driving
	}

	next := net.AdjacentCell(current, a.Direction)
	if next != nil && net.debug {
		next.DebugView = "mark"
		current.DebugView = "nothing"
	}

	if a.Claim != nil && a.Claim.Status == ClaimQueued && (next == nil || next.Coord() != a.Claim.Junction) {
		net.Withdraw(a.Claim.Junction, a)
	}

	if next != nil && next.Kind == Junction {
		coord := next.Coord()
		switch {
		case a.Claim == nil || (a.Claim.Junction == coord && a.Claim.Status == ClaimQueued):
			if !net.RequestEntry(coord, a, roster) {
				a.State = Waiting
				return
			}
			a.State = Driving
			a.NextDirection = net.DecideNextDirection(coord)
			if net.debug {
				next.DebugView = "junction"
			}
		case a.Claim.Junction == coord && a.Claim.Status == ClaimOverride:
			// recheck before crossing: take the junction if it became free,
			// otherwise only cross while its occupant is still outside
			if !net.tryAcquire(coord, a, roster) && net.occupantInside(coord) {
				a.State = Waiting
				return
			}
		}
	}

	if a.State == Waiting && a.Claim != nil && a.Claim.Status == ClaimGranted {
		a.State = Driving
	}
	if a.IsWaiting() {
		return
	}

	a.move(net, roster, current, tick)

	if net.OutOfPlay(a.Position) {
		a.respawn(net, roster, tick)
	}
}

func (a *Agent) holdsJunction() bool {
	return a.Claim != nil && (a.Claim.Status == ClaimGranted || a.Claim.Status == ClaimOverride)
}

// move integrates the position and handles the turn at a junction centre
func (a *Agent) move(net *Network, roster Roster, current *Cell, tick int64) {
	prev := a.Position
	v := a.Direction.Vector().Scale(a.Speed)
	a.Position = a.Position.Add(v)
	a.LastMovedTick = tick
	a.WaitingCycles = 0

	if current == nil || current.Kind != Junction {
		return
	}
	if current.Center.Sub(prev).Dot(v) <= 0 {
		return
	}
	// snap once the centre is reached or passed, or the car is within CenterSnap of it
	short := current.Center.Sub(a.Position).Dot(v) > 0
	if short && a.Position.Dist(current.Center) >= net.params.CenterSnap {
		return
	}

	a.Position = current.Center
	if a.NextDirection.Valid() {
		a.Direction = a.NextDirection
	} else {
		a.Direction = net.DecideNextDirection(current.Coord())
	}

	coord := current.Coord()
	override := a.Claim != nil && a.Claim.Junction == coord && a.Claim.Status == ClaimOverride
	net.Release(coord, a, roster)
	if override {
		net.diag.OverrideCrossings++
	}
	if a.Claim != nil && a.Claim.Junction == coord {
		a.Claim = nil
	}
	a.NextDirection = NoDirection
	a.State = Driving
}

// recover is the stuck-car override: after the wait threshold a car may go on
// when nothing is right ahead of it. A queued car leaves the queue and
// approaches on an override claim; a granted car keeps its grant.
func (a *Agent) recover(net *Network, roster Roster) bool {
	if !safeToRelease(a, roster, net) {
		return false
	}
	net.log.WithFields(log.Fields{"agent": a.ID, "cycles": a.WaitingCycles}).Debug("releasing stuck car")

	if a.Claim != nil && a.Claim.Status == ClaimQueued {
		coord := a.Claim.Junction
		net.Withdraw(coord, a)
		a.Claim = &Claim{Junction: coord, Status: ClaimOverride, Since: net.now}
		a.NextDirection = net.DecideNextDirection(coord)
	}
	a.State = Driving
	a.WaitingCycles = 0
	net.diag.SafeReleases++
	return true
}

// forceRelease drops a claim held too long without progress
func (a *Agent) forceRelease(net *Network, roster Roster) {
	coord := a.Claim.Junction
	net.log.WithFields(log.Fields{"agent": a.ID, "junction": coord}).Debug("forcing junction release")
	if a.Claim.Status == ClaimGranted {
		net.Release(coord, a, roster)
	}
	a.Claim = nil
	a.NextDirection = NoDirection
	a.State = Driving
	net.diag.ForcedReleases++
}

// releaseClaim gives up whatever relation the car has with a junction
func (a *Agent) releaseClaim(net *Network, roster Roster) {
	if a.Claim == nil {
		return
	}
	switch a.Claim.Status {
	case ClaimGranted:
		net.Release(a.Claim.Junction, a, roster)
	case ClaimQueued:
		net.Withdraw(a.Claim.Junction, a)
	}
	a.Claim = nil
}

// respawn relocates a car that left the field or entered an obstacle. When no
// spawn point is free the car stays parked in Waiting and retries next tick.
func (a *Agent) respawn(net *Network, roster Roster, tick int64) {
	a.releaseClaim(net, roster)
	a.State = Respawned

	pos, ok := net.FindSafeSpawn(lo.Without(roster, a), SpawnBoundary)
	if !ok {
		a.State = Waiting
		net.diag.SpawnFailures++
		return
	}

	a.Position = pos
	a.resolveHeading(net)
	a.NextDirection = NoDirection
	a.Speed = a.MaxSpeed
	a.WaitingCycles = 0
	a.LastMovedTick = tick
	a.State = Driving
	net.diag.Respawns++
}

// lastProgress is the later of the last move and the last claim change
func (a *Agent) lastProgress() int64 {
	if a.Claim != nil && a.Claim.Since > a.LastMovedTick {
		return a.Claim.Since
	}
	return a.LastMovedTick
}
