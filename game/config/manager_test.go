package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
)

func createValidConfig() *engine.SimConfig {
	return &engine.SimConfig{
		Name:        "Test Config",
		Description: "Test configuration",
		Cols:        5,
		Rows:        5,
		CellSize:    20,
		AgentCount:  3,
		Layout: []string{
			"..v..",
			"..v..",
			">>+>>",
			"..v..",
			"..v..",
		},
	}
}

func writeConfigFile(t *testing.T, dir, name string, config *engine.SimConfig) {
	t.Helper()

	filename := name
	if filepath.Ext(filename) == "" {
		filename = name + ".json"
	}

	data, err := engine.EncodeSimConfig(config, filepath.Ext(filename))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), data, 0644))
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		defaultConfig := createValidConfig()
		defaultConfig.Name = "Default"
		writeConfigFile(t, dir, "default", defaultConfig)

		manager, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, "Default", manager.GetDefault().Name)
	})

	t.Run("non-existent directory", func(t *testing.T) {
		_, err := NewManager("/non/existent/path")
		assert.Error(t, err)
	})

	t.Run("empty directory falls back to the built-in city", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		require.NoError(t, err)

		defaultConfig := manager.GetDefault()
		require.NotNil(t, defaultConfig)
		assert.Equal(t, engine.DefaultSimConfig(), defaultConfig)
		assert.Empty(t, defaultConfig.Layout)
	})

	t.Run("first listed config when no default file", func(t *testing.T) {
		dir := t.TempDir()
		b := createValidConfig()
		b.Name = "Bravo"
		writeConfigFile(t, dir, "bravo.yaml", b)
		a := createValidConfig()
		a.Name = "Alpha"
		writeConfigFile(t, dir, "alpha.toml", a)

		manager, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, "Alpha", manager.GetDefault().Name)
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := t.TempDir()

	defaultConfig := createValidConfig()
	defaultConfig.Name = "Default"
	writeConfigFile(t, dir, "default", defaultConfig)

	busy := createValidConfig()
	busy.Name = "Busy"
	busy.AgentCount = 8
	writeConfigFile(t, dir, "busy", busy)

	yamlConfig := createValidConfig()
	yamlConfig.Name = "From YAML"
	writeConfigFile(t, dir, "yamlcity.yml", yamlConfig)

	tomlConfig := createValidConfig()
	tomlConfig.Name = "From TOML"
	tomlConfig.Seed = 42
	writeConfigFile(t, dir, "tomlcity.toml", tomlConfig)

	manager, err := NewManager(dir)
	require.NoError(t, err)

	tests := []struct {
		name     string
		load     string
		wantName string
	}{
		{"by config id", "busy", "Busy"},
		{"with extension", "busy.json", "Busy"},
		{"yaml without extension", "yamlcity", "From YAML"},
		{"toml without extension", "tomlcity", "From TOML"},
		{"toml with extension", "tomlcity.toml", "From TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := manager.LoadConfig(tt.load)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, config.Name)
		})
	}

	t.Run("fields survive decoding", func(t *testing.T) {
		config, err := manager.LoadConfig("tomlcity")
		require.NoError(t, err)
		assert.Equal(t, int64(42), config.Seed)
		assert.Equal(t, createValidConfig().Layout, config.Layout)
	})

	t.Run("load from cache", func(t *testing.T) {
		config1, err := manager.LoadConfig("busy")
		require.NoError(t, err)
		config2, err := manager.LoadConfig("busy.json")
		require.NoError(t, err)
		assert.Same(t, config1, config2)
	})

	t.Run("non-existent config", func(t *testing.T) {
		_, err := manager.LoadConfig("non-existent")
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("path traversal", func(t *testing.T) {
		_, err := manager.LoadConfig("../busy")
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("invalid config", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "invalid.json"), []byte(`{"name": ""}`), 0644))
		_, err := manager.LoadConfig("invalid")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("malformed file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "malformed.json"), []byte(`{"name": "Malformed", invalid json}`), 0644))
		_, err := manager.LoadConfig("malformed")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestManager_ListConfigs(t *testing.T) {
	dir := t.TempDir()

	configs := []struct {
		filename string
		name     string
	}{
		{"default.json", "Default"},
		{"downtown.yaml", "Downtown"},
		{"suburbs.toml", "Suburbs"},
		{"harbour.yml", "Harbour"},
	}
	for _, cfg := range configs {
		config := createValidConfig()
		config.Name = cfg.name
		writeConfigFile(t, dir, cfg.filename, config)
	}

	generated := engine.DefaultSimConfig()
	generated.Name = "Generated"
	writeConfigFile(t, dir, "generated.json", generated)

	// Ignored: not a config file, broken, duplicate id
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("readme"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	writeConfigFile(t, dir, "downtown.toml", createValidConfig())

	manager, err := NewManager(dir)
	require.NoError(t, err)

	list, err := manager.ListConfigs()
	require.NoError(t, err)

	var ids []string
	byID := make(map[string]bool)
	for _, info := range list {
		ids = append(ids, info.ConfigID)
		byID[info.ConfigID] = info.Generated
	}
	assert.Equal(t, []string{"default", "downtown", "generated", "harbour", "suburbs"}, ids)
	assert.True(t, byID["generated"])
	assert.False(t, byID["downtown"])

	for _, info := range list {
		if info.ConfigID == "suburbs" {
			assert.Equal(t, "suburbs.toml", info.Filename)
			assert.Equal(t, "Suburbs", info.Name)
			assert.Equal(t, 5, info.Cols)
			assert.Equal(t, 3, info.AgentCount)
		}
	}
}

func TestManager_SaveConfig(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	t.Run("defaults to json", func(t *testing.T) {
		config := createValidConfig()
		config.Name = "Saved"
		require.NoError(t, manager.SaveConfig("saved", config))
		assert.FileExists(t, filepath.Join(dir, "saved.json"))

		loaded, err := loadFresh(dir, "saved")
		require.NoError(t, err)
		assert.Equal(t, config, loaded)
	})

	t.Run("explicit yaml", func(t *testing.T) {
		require.NoError(t, manager.SaveConfig("city.yaml", createValidConfig()))
		assert.FileExists(t, filepath.Join(dir, "city.yaml"))

		loaded, err := loadFresh(dir, "city")
		require.NoError(t, err)
		assert.Equal(t, createValidConfig().Layout, loaded.Layout)
	})

	t.Run("keeps the format of an existing file", func(t *testing.T) {
		writeConfigFile(t, dir, "grid.toml", createValidConfig())
		updated := createValidConfig()
		updated.AgentCount = 4
		require.NoError(t, manager.SaveConfig("grid", updated))

		assert.NoFileExists(t, filepath.Join(dir, "grid.json"))
		loaded, err := loadFresh(dir, "grid")
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.AgentCount)
	})

	t.Run("rejects invalid configs", func(t *testing.T) {
		config := createValidConfig()
		config.Cols = 2
		assert.ErrorIs(t, manager.SaveConfig("broken", config), ErrInvalidConfig)
		assert.NoFileExists(t, filepath.Join(dir, "broken.json"))
	})

	t.Run("rejects names outside the directory", func(t *testing.T) {
		assert.ErrorIs(t, manager.SaveConfig("../escape", createValidConfig()), ErrInvalidConfig)
	})
}

func TestManager_SetDefaultAndRefresh(t *testing.T) {
	dir := t.TempDir()
	config := createValidConfig()
	config.Name = "Changeable"
	writeConfigFile(t, dir, "changeable", config)

	manager, err := NewManager(dir)
	require.NoError(t, err)
	require.NoError(t, manager.SetDefault("changeable"))
	assert.Equal(t, "Changeable", manager.GetDefault().Name)

	config.AgentCount = 4
	writeConfigFile(t, dir, "changeable", config)

	cached, err := manager.LoadConfig("changeable")
	require.NoError(t, err)
	assert.Equal(t, 3, cached.AgentCount, "served from cache until refreshed")

	require.NoError(t, manager.RefreshCache())
	reloaded, err := manager.LoadConfig("changeable")
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.AgentCount)

	assert.ErrorIs(t, manager.SetDefault("missing"), ErrConfigNotFound)
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		config := createValidConfig()
		config.Name = "Config" + string(rune('0'+i))
		writeConfigFile(t, dir, "config"+string(rune('0'+i)), config)
	}

	manager, err := NewManager(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := manager.LoadConfig("config" + string(rune('0'+((id%5)+1)))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error during concurrent access: %v", err)
	}
	assert.Equal(t, 5, manager.Count())
}

// loadFresh reads a config through a new manager, bypassing any cache
func loadFresh(dir, name string) (*engine.SimConfig, error) {
	m, err := NewManager(dir)
	if err != nil {
		return nil, err
	}
	return m.LoadConfig(name)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.configs)
}
