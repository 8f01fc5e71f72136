package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSimConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*SimConfig)
		wantErr bool
	}{
		{"valid", func(c *SimConfig) {}, false},
		{"generated layout", func(c *SimConfig) { c.Layout = nil }, false},
		{"missing name", func(c *SimConfig) { c.Name = "" }, true},
		{"too few columns", func(c *SimConfig) { c.Cols = 2 }, true},
		{"too many rows", func(c *SimConfig) { c.Rows = MaxGridSize + 1 }, true},
		{"negative agents", func(c *SimConfig) { c.AgentCount = -1 }, true},
		{"too many agents", func(c *SimConfig) { c.AgentCount = MaxAgents + 1 }, true},
		{"negative speed", func(c *SimConfig) { c.MaxSpeed = -1 }, true},
		{"negative tick interval", func(c *SimConfig) { c.TickIntervalMs = -5 }, true},
		{"row count mismatch", func(c *SimConfig) { c.Layout = c.Layout[:5] }, true},
		{"row width mismatch", func(c *SimConfig) { c.Layout[2] = ">>>" }, true},
		{"bad character", func(c *SimConfig) { c.Layout[0] = "XXXXXXXXXXXX" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := createTestSimConfig()
			tt.modify(config)
			err := ValidateSimConfig(config)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.ErrorIs(t, ValidateSimConfig(nil), ErrInvalidConfig)
}

func TestSimConfigParams(t *testing.T) {
	config := DefaultSimConfig()
	p := config.Params()
	assert.Equal(t, 20.0, p.CellSize)
	assert.Equal(t, 60.0, p.SensorRange)
	assert.Equal(t, 20.0, p.MinSafeDistance)
	assert.Equal(t, 2.0, p.MaxSpeed)

	config.CellSize = 0
	config.MaxSpeed = 3
	p = config.Params()
	assert.Equal(t, float64(DefaultCellSize), p.CellSize)
	assert.Equal(t, 3.0, p.MaxSpeed)

	require.NoError(t, ValidateSimConfig(DefaultSimConfig()))
}

func TestDecodeSimConfigFormats(t *testing.T) {
	sources := map[string]string{
		".json": `{"name": "small", "cols": 5, "rows": 3, "cell_size": 20, "agent_count": 4, "layout": ["..v..", ">>+>>", "..v.."]}`,
		".yaml": "name: small\ncols: 5\nrows: 3\ncell_size: 20\nagent_count: 4\nlayout:\n  - ..v..\n  - '>>+>>'\n  - ..v..\n",
		".toml": "name = \"small\"\ncols = 5\nrows = 3\ncell_size = 20.0\nagent_count = 4\nlayout = [\"..v..\", \">>+>>\", \"..v..\"]\n",
	}

	for ext, src := range sources {
		t.Run(ext, func(t *testing.T) {
			config, err := DecodeSimConfig([]byte(src), ext)
			require.NoError(t, err)
			assert.Equal(t, "small", config.Name)
			assert.Equal(t, 5, config.Cols)
			assert.Equal(t, 3, config.Rows)
			assert.Equal(t, 20.0, config.CellSize)
			assert.Equal(t, 4, config.AgentCount)
			assert.Equal(t, []string{"..v..", ">>+>>", "..v.."}, config.Layout)
			assert.NoError(t, ValidateSimConfig(config))
		})
	}

	_, err := DecodeSimConfig([]byte("{}"), ".ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = DecodeSimConfig([]byte("{not json"), ".json")
	assert.Error(t, err)
}

func TestLoadSimConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.yaml")

	data, err := EncodeSimConfig(createTestSimConfig(), ".yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	config, err := LoadSimConfig(path)
	require.NoError(t, err)
	assert.Equal(t, gridLayout(), config.Layout)
	assert.Equal(t, int64(7), config.Seed)

	_, err = LoadSimConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestIsConfigFile(t *testing.T) {
	assert.True(t, IsConfigFile("a.json"))
	assert.True(t, IsConfigFile("a.YML"))
	assert.True(t, IsConfigFile("a.toml"))
	assert.False(t, IsConfigFile("a.txt"))
	assert.False(t, IsConfigFile("json"))
}
