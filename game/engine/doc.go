// Package engine provides the traffic arbitration and car motion core of the grid traffic simulator.
//
// The engine package implements:
//   - The road network: a grid of typed cells plus a junction registry keyed by grid coordinate
//   - Junction arbitration: one occupant per junction, FIFO wait lists, stale-record eviction
//   - The per-car driving state machine with stuck-car recovery
//   - Forward-cone collision avoidance between cars on the same kind of cell
//   - Safe spawn and relocation of cars
//   - Snapshots and restore
//
// Core Types:
//
// Network owns the cells and every JunctionState. Agent is a car; its Update
// method advances it one tick against the whole Roster. Simulation owns a
// network and a roster and steps them together. SimConfig describes a run and
// can be loaded from JSON, YAML or TOML.
//
// Usage:
//
//	config := engine.DefaultSimConfig()
//	config.Layout = citygen.Generate(config.Cols, config.Rows, rng, citygen.Knobs{})
//
//	sim, err := engine.NewSimulation(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sim.StepN(100)
//	snap := sim.Snapshot()
//
// Concurrency:
//
// Cars are updated one after another inside a tick, so junction records need
// no locking. A Simulation must not be used from several goroutines at once;
// the service layer holds a lock per session.
//
// Layout Format:
//
// Each layout row is a string of cell characters: '.' empty, '>' road heading
// east, '<' road heading west, 'v' road heading south, '^' road heading north,
// '+' junction, 'B' building. A junction allows exit d when the first
// non-junction cell in direction d is a road flowing in d.
package engine
