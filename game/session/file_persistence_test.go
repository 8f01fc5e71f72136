package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
	"github.com/wricardo/mcp-training/gridtraffic/game/service"
)

func newTestSession(t *testing.T, id string) *service.Session {
	t.Helper()
	sim, err := engine.NewSimulation(createTestConfig(), quietOptions()...)
	require.NoError(t, err)
	return &service.Session{
		ID:             id,
		ConfigName:     "test",
		Sim:            sim,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
}

func TestFilePersistence(t *testing.T) {
	persistence, err := NewFilePersistence(t.TempDir())
	require.NoError(t, err)

	session := newTestSession(t, "test1")

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, persistence.Save(session))
		assert.True(t, persistence.Exists("test1"))

		loaded, err := persistence.Load("test1", quietOptions()...)
		require.NoError(t, err)
		assert.Equal(t, session.ID, loaded.ID)
		assert.Equal(t, session.ConfigName, loaded.ConfigName)
		assert.Equal(t, session.Sim.Config().Layout, loaded.Sim.Config().Layout)
		assert.Equal(t, session.Sim.AgentCount(), loaded.Sim.AgentCount())
		assert.True(t, session.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("save state changes", func(t *testing.T) {
		session.Sim.StepN(30)
		session.Sim.SetDebug(true)
		require.NoError(t, persistence.Save(session))

		loaded, err := persistence.Load("test1", quietOptions()...)
		require.NoError(t, err)
		assert.Equal(t, int64(30), loaded.Sim.Tick())
		assert.True(t, loaded.Sim.Network().Debug())
		assert.Equal(t, session.Sim.Network().JunctionViews(), loaded.Sim.Network().JunctionViews())
	})

	t.Run("list all", func(t *testing.T) {
		require.NoError(t, persistence.Save(newTestSession(t, "test2")))

		ids, err := persistence.ListAll()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"test1", "test2"}, ids)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, persistence.Delete("test2"))
		assert.False(t, persistence.Exists("test2"))

		_, err := persistence.Load("test2")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("error cases", func(t *testing.T) {
		_, err := persistence.Load("nonexistent")
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.ErrorIs(t, persistence.Delete("nonexistent"), ErrSessionNotFound)
		assert.Error(t, persistence.Save(nil))
	})
}

func TestFilePersistenceRejectsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	persistence, err := NewFilePersistence(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{"), 0644))
	_, err = persistence.Load("garbage")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"id": "empty"}`), 0644))
	_, err = persistence.Load("empty")
	assert.Error(t, err)

	session := newTestSession(t, "ghost")
	snap := session.Sim.Snapshot()
	ghost := 9999
	snap.Junctions[0].Occupied = true
	snap.Junctions[0].Occupant = &ghost
	data, err := json.Marshal(PersistedSessionData{ID: "ghost", Snapshot: snap})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ghost.json"), data, 0644))

	_, err = persistence.Load("ghost")
	assert.ErrorIs(t, err, engine.ErrAgentNotFound)
}

func TestFilePersistenceFileStructure(t *testing.T) {
	dir := t.TempDir()
	persistence, err := NewFilePersistence(dir)
	require.NoError(t, err)

	require.NoError(t, persistence.Save(newTestSession(t, "File_Test")))

	expectedFile := filepath.Join(dir, "file_test.json")
	require.FileExists(t, expectedFile)

	data, err := os.ReadFile(expectedFile)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"id", "config_name", "created_at", "last_accessed_at", "snapshot"} {
		assert.Contains(t, raw, field)
	}

	var snap map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["snapshot"], &snap))
	for _, field := range []string{"tick", "config", "agents", "junctions", "diagnostics", "next_id"} {
		assert.Contains(t, snap, field)
	}

	assert.True(t, persistence.Exists("FILE_TEST"), "lookups ignore case")
}
