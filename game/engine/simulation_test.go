package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSimConfig() *SimConfig {
	return &SimConfig{
		Name:        "grid",
		Description: "Four junction test city",
		Cols:        12,
		Rows:        12,
		CellSize:    20,
		AgentCount:  12,
		Seed:        7,
		Layout:      gridLayout(),
	}
}

func newTestSimulation(t *testing.T, config *SimConfig) *Simulation {
	t.Helper()
	sim, err := NewSimulation(config, WithLogger(quietLogger()))
	require.NoError(t, err)
	return sim
}

func TestNewSimulationPopulates(t *testing.T) {
	sim := newTestSimulation(t, createTestSimConfig())

	assert.Equal(t, 12, sim.AgentCount())
	assert.Zero(t, sim.Tick())

	seen := map[int]bool{}
	for _, a := range sim.Roster() {
		assert.False(t, seen[a.ID], "duplicate id %d", a.ID)
		seen[a.ID] = true
		cell := sim.Network().CellAt(a.Position)
		require.NotNil(t, cell)
		assert.True(t, cell.IsRoad(), "car %d placed off road", a.ID)
		assert.Equal(t, Driving, a.State)
	}
}

func TestNewSimulationRequiresLayout(t *testing.T) {
	config := createTestSimConfig()
	config.Layout = nil

	_, err := NewSimulation(config)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPopulateStopsWhenRoadsAreFull(t *testing.T) {
	config := &SimConfig{
		Name:       "tiny",
		Cols:       5,
		Rows:       3,
		CellSize:   20,
		AgentCount: 50,
		Seed:       1,
		Layout:     []string{">>>>>", ".....", "....."},
	}
	sim := newTestSimulation(t, config)

	assert.LessOrEqual(t, sim.AgentCount(), 5)
	assert.Positive(t, sim.AgentCount())
}

func TestSimulationInvariantsHoldEveryTick(t *testing.T) {
	sim := newTestSimulation(t, createTestSimConfig())
	count := sim.AgentCount()

	for i := 0; i < 600; i++ {
		sim.Step()
		require.NoError(t, sim.CheckInvariants(), "tick %d", sim.Tick())
		require.Equal(t, count, sim.AgentCount(), "tick %d", sim.Tick())

		for _, coord := range sim.Network().JunctionCoords() {
			j, _ := sim.Network().Junction(coord)
			if occupant := j.Occupant(); occupant != nil {
				require.NotNil(t, occupant.Claim, "tick %d: occupant %d has no claim", sim.Tick(), occupant.ID)
			}
		}
	}
	assert.Equal(t, int64(600), sim.Tick())

	diag := sim.Network().Diagnostics()
	assert.Positive(t, diag.Respawns, "cars leave the field and come back")
	assert.Zero(t, diag.Defects())
}

func TestSimulationResetKeepsIDsGrowing(t *testing.T) {
	sim := newTestSimulation(t, createTestSimConfig())
	sim.StepN(40)

	maxBefore := 0
	for _, a := range sim.Roster() {
		if a.ID > maxBefore {
			maxBefore = a.ID
		}
	}

	sim.Reset()

	assert.Equal(t, 12, sim.AgentCount())
	for _, a := range sim.Roster() {
		assert.Greater(t, a.ID, maxBefore)
	}
	for _, jv := range sim.Network().JunctionViews() {
		assert.False(t, jv.Occupied)
		assert.Empty(t, jv.Queue)
	}
	assert.Equal(t, int64(40), sim.Tick())
}

func TestSimulationAgentLookup(t *testing.T) {
	sim := newTestSimulation(t, createTestSimConfig())

	a, err := sim.Agent(1)
	require.NoError(t, err)
	assert.Equal(t, 1, a.ID)

	_, err = sim.Agent(999)
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestSnapshotRestore(t *testing.T) {
	sim := newTestSimulation(t, createTestSimConfig())
	sim.StepN(75)
	snap := sim.Snapshot()

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, int64(75), snap.Tick)
	assert.Len(t, snap.Agents, 12)
	assert.Len(t, snap.Junctions, 4)
	assert.Equal(t, gridLayout(), snap.Config.Layout)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := RestoreSimulation(&decoded, WithLogger(quietLogger()))
	require.NoError(t, err)

	again := restored.Snapshot()
	assert.Equal(t, snap.Tick, again.Tick)
	assert.Equal(t, snap.Agents, again.Agents)
	assert.Equal(t, snap.Junctions, again.Junctions)
	assert.Equal(t, snap.Diagnostics, again.Diagnostics)
	assert.Equal(t, snap.NextID, again.NextID)

	restored.StepN(10)
	assert.NoError(t, restored.CheckInvariants())
	assert.Equal(t, 12, restored.AgentCount())
}

func TestRestoreRejectsUnknownOccupant(t *testing.T) {
	sim := newTestSimulation(t, createTestSimConfig())
	snap := sim.Snapshot()

	ghost := 404
	snap.Junctions[0].Occupant = &ghost
	snap.Junctions[0].Occupied = true

	_, err := RestoreSimulation(snap)
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestCountStates(t *testing.T) {
	sim := newTestSimulation(t, createTestSimConfig())
	counts := sim.CountStates()
	assert.Equal(t, 12, counts[Driving])
}
