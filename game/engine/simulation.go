package engine

import (
	"fmt"
	"math/rand"
)

// Simulation owns a network and its roster and drives them tick by tick.
// It is not safe for concurrent use; callers serialize access.
type Simulation struct {
	config *SimConfig
	net    *Network
	roster Roster
	tick   int64
	nextID int
}

// NewSimulation builds the network from config.Layout and populates it with
// config.AgentCount cars. A non-zero Seed makes the run reproducible unless a
// WithRand option overrides it.
func NewSimulation(config *SimConfig, opts ...Option) (*Simulation, error) {
	if err := ValidateSimConfig(config); err != nil {
		return nil, err
	}
	if len(config.Layout) == 0 {
		return nil, fmt.Errorf("%w: layout is required", ErrInvalidConfig)
	}

	net, err := NewNetwork(config.Layout, config.Params(), seeded(config, opts)...)
	if err != nil {
		return nil, err
	}

	s := &Simulation{config: config, net: net, nextID: 1}
	placed := s.Populate(config.AgentCount)
	if placed < config.AgentCount {
		net.log.WithField("placed", placed).Warnf("could only place %d of %d cars", placed, config.AgentCount)
	}
	return s, nil
}

func seeded(config *SimConfig, opts []Option) []Option {
	if config.Seed == 0 {
		return opts
	}
	return append([]Option{WithRand(rand.New(rand.NewSource(config.Seed)))}, opts...)
}

// Populate adds up to count cars on free road cells, giving up after count*10 attempts.
// Returns how many cars were placed.
func (s *Simulation) Populate(count int) int {
	placed := 0
	for attempts := count * 10; placed < count && attempts > 0; attempts-- {
		pos, ok := s.net.FindSafeSpawn(s.roster, SpawnAnyRoad)
		if !ok {
			continue
		}
		s.roster = append(s.roster, NewAgent(s.nextID, pos, s.net, s.tick))
		s.nextID++
		placed++
	}
	return placed
}

// Step advances every car by one tick
func (s *Simulation) Step() {
	s.tick++
	for _, a := range s.roster {
		a.Update(s.net, s.roster, s.tick)
	}
}

// StepN advances the simulation n ticks
func (s *Simulation) StepN(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// Reset clears every junction and rebuilds the roster. Car IDs keep growing
// so no reference to a previous car can match a new one.
func (s *Simulation) Reset() {
	s.net.ResetJunctions()
	s.roster = nil
	s.Populate(s.config.AgentCount)
}

func (s *Simulation) Tick() int64            { return s.tick }
func (s *Simulation) Network() *Network      { return s.net }
func (s *Simulation) Config() *SimConfig     { return s.config }
func (s *Simulation) Roster() Roster         { return append(Roster(nil), s.roster...) }
func (s *Simulation) AgentCount() int        { return len(s.roster) }
func (s *Simulation) SetDebug(on bool)       { s.net.SetDebug(on) }
func (s *Simulation) CheckInvariants() error { return s.net.CheckInvariants() }

// Agent returns the car with the given ID
func (s *Simulation) Agent(id int) (*Agent, error) {
	a, ok := s.roster.ByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAgentNotFound, id)
	}
	return a, nil
}

// CountStates counts the cars in each state
func (s *Simulation) CountStates() map[AgentState]int {
	counts := make(map[AgentState]int)
	for _, a := range s.roster {
		counts[a.State]++
	}
	return counts
}
