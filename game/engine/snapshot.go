package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// JunctionView is the read-only rendering of a junction record
type JunctionView struct {
	Coord        Coord       `json:"coord"`
	Occupied     bool        `json:"occupied"`
	Occupant     *int        `json:"occupant,omitempty"`
	Queue        []int       `json:"queue"`
	AllowedExits []Direction `json:"allowed_exits"`
}

// Snapshot is a self-contained copy of a simulation, enough to restore it
type Snapshot struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	Tick        int64              `json:"tick"`
	Config      SimConfig          `json:"config"`
	Agents      []Agent            `json:"agents"`
	Junctions   []JunctionView     `json:"junctions"`
	Diagnostics Diagnostics        `json:"diagnostics"`
	States      map[AgentState]int `json:"states"`
	Debug       bool               `json:"debug"`
	NextID      int                `json:"next_id"`
}

// View renders one junction record
func (j *JunctionState) View() JunctionView {
	v := JunctionView{
		Coord:        j.coord,
		Occupied:     j.occupied,
		Queue:        lo.Map(j.queue, func(a *Agent, _ int) int { return a.ID }),
		AllowedExits: j.AllowedExits(),
	}
	if j.occupant != nil {
		id := j.occupant.ID
		v.Occupant = &id
	}
	return v
}

// JunctionViews renders every junction in row-major order
func (n *Network) JunctionViews() []JunctionView {
	return lo.Map(n.JunctionCoords(), func(c Coord, _ int) JunctionView {
		return n.junctions[c].View()
	})
}

// Snapshot copies the current state of the simulation
func (s *Simulation) Snapshot() *Snapshot {
	agents := make([]Agent, len(s.roster))
	for i, a := range s.roster {
		agents[i] = *a
		if a.Claim != nil {
			claim := *a.Claim
			agents[i].Claim = &claim
		}
	}
	config := *s.config
	config.Layout = s.net.Layout()

	return &Snapshot{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		Tick:        s.tick,
		Config:      config,
		Agents:      agents,
		Junctions:   s.net.JunctionViews(),
		Diagnostics: s.net.diag,
		States:      s.CountStates(),
		Debug:       s.net.debug,
		NextID:      s.nextID,
	}
}

// RestoreSimulation rebuilds a simulation from a snapshot. The random source
// starts afresh, so a restored run does not replay the saved run's random choices.
func RestoreSimulation(snap *Snapshot, opts ...Option) (*Simulation, error) {
	config := snap.Config
	if err := ValidateSimConfig(&config); err != nil {
		return nil, err
	}
	net, err := NewNetwork(config.Layout, config.Params(), seeded(&config, opts)...)
	if err != nil {
		return nil, err
	}

	s := &Simulation{config: &config, net: net, tick: snap.Tick, nextID: snap.NextID}
	byID := make(map[int]*Agent, len(snap.Agents))
	for i := range snap.Agents {
		a := snap.Agents[i]
		if a.Claim != nil {
			claim := *a.Claim
			a.Claim = &claim
		}
		s.roster = append(s.roster, &a)
		byID[a.ID] = &a
		if a.ID >= s.nextID {
			s.nextID = a.ID + 1
		}
	}

	for _, jv := range snap.Junctions {
		j, ok := net.junctions[jv.Coord]
		if !ok {
			return nil, fmt.Errorf("%w: %d,%d", ErrUnknownJunction, jv.Coord.Col, jv.Coord.Row)
		}
		if jv.Occupant != nil {
			occupant, ok := byID[*jv.Occupant]
			if !ok {
				return nil, fmt.Errorf("junction %d,%d occupant: %w: %d", jv.Coord.Col, jv.Coord.Row, ErrAgentNotFound, *jv.Occupant)
			}
			j.occupied = true
			j.occupant = occupant
		}
		for _, id := range jv.Queue {
			a, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("junction %d,%d queue: %w: %d", jv.Coord.Col, jv.Coord.Row, ErrAgentNotFound, id)
			}
			j.queue = append(j.queue, a)
		}
	}

	net.diag = snap.Diagnostics
	net.debug = snap.Debug
	if err := net.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("restored snapshot is inconsistent: %w", err)
	}
	return s, nil
}
