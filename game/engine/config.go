package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig     = errors.New("invalid simulation config")
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

const (
	MinGridSize     = 3
	MaxGridSize     = 200
	MaxAgents       = 5000
	DefaultCols     = 50
	DefaultRows     = 50
	DefaultAgents   = 160
	DefaultTickMs   = 33
	DefaultBaseRoad = 25
	DefaultBuilding = 8
)

// SimConfig describes one simulation: grid geometry, car count and either a
// fixed layout or the knobs to generate one.
type SimConfig struct {
	Name           string   `json:"name" yaml:"name" toml:"name"`
	Description    string   `json:"description" yaml:"description" toml:"description"`
	Cols           int      `json:"cols" yaml:"cols" toml:"cols"`
	Rows           int      `json:"rows" yaml:"rows" toml:"rows"`
	CellSize       float64  `json:"cell_size" yaml:"cell_size" toml:"cell_size"`
	AgentCount     int      `json:"agent_count" yaml:"agent_count" toml:"agent_count"`
	MaxSpeed       float64  `json:"max_speed,omitempty" yaml:"max_speed,omitempty" toml:"max_speed,omitempty"`
	Seed           int64    `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`
	Layout         []string `json:"layout,omitempty" yaml:"layout,omitempty" toml:"layout,omitempty"`
	BaseRoads      int      `json:"base_roads,omitempty" yaml:"base_roads,omitempty" toml:"base_roads,omitempty"`
	BaseBuildings  int      `json:"base_buildings,omitempty" yaml:"base_buildings,omitempty" toml:"base_buildings,omitempty"`
	TickIntervalMs int      `json:"tick_interval_ms,omitempty" yaml:"tick_interval_ms,omitempty" toml:"tick_interval_ms,omitempty"`
}

// DefaultSimConfig is the built-in config used when no config directory is populated
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		Name:           "default",
		Description:    "Generated 50x50 city with 160 cars",
		Cols:           DefaultCols,
		Rows:           DefaultRows,
		CellSize:       DefaultCellSize,
		AgentCount:     DefaultAgents,
		MaxSpeed:       DefaultMaxSpeed,
		BaseRoads:      DefaultBaseRoad,
		BaseBuildings:  DefaultBuilding,
		TickIntervalMs: DefaultTickMs,
	}
}

// Params derives the engine tunables of a config
func (c *SimConfig) Params() Params {
	p := DefaultParams(c.CellSize)
	if c.MaxSpeed > 0 {
		p.MaxSpeed = c.MaxSpeed
	}
	return p
}

// ValidateSimConfig checks a config for consistency. An empty layout is
// accepted: it will be generated from Cols/Rows and the generator knobs.
func ValidateSimConfig(config *SimConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if config.Cols < MinGridSize || config.Cols > MaxGridSize {
		return fmt.Errorf("%w: cols must be between %d and %d, got %d", ErrInvalidConfig, MinGridSize, MaxGridSize, config.Cols)
	}
	if config.Rows < MinGridSize || config.Rows > MaxGridSize {
		return fmt.Errorf("%w: rows must be between %d and %d, got %d", ErrInvalidConfig, MinGridSize, MaxGridSize, config.Rows)
	}
	if config.CellSize < 0 {
		return fmt.Errorf("%w: cell_size must not be negative, got %v", ErrInvalidConfig, config.CellSize)
	}
	if config.AgentCount < 0 || config.AgentCount > MaxAgents {
		return fmt.Errorf("%w: agent_count must be between 0 and %d, got %d", ErrInvalidConfig, MaxAgents, config.AgentCount)
	}
	if config.MaxSpeed < 0 {
		return fmt.Errorf("%w: max_speed must not be negative, got %v", ErrInvalidConfig, config.MaxSpeed)
	}
	if config.TickIntervalMs < 0 {
		return fmt.Errorf("%w: tick_interval_ms must not be negative, got %d", ErrInvalidConfig, config.TickIntervalMs)
	}

	if len(config.Layout) == 0 {
		return nil
	}
	if len(config.Layout) != config.Rows {
		return fmt.Errorf("%w: layout must have %d rows to match rows, got %d", ErrInvalidConfig, config.Rows, len(config.Layout))
	}
	for i, row := range config.Layout {
		if len(row) != config.Cols {
			return fmt.Errorf("%w: row %d must have %d characters to match cols, got %d", ErrInvalidConfig, i+1, config.Cols, len(row))
		}
	}
	if err := ValidateLayout(config.Layout); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DecodeSimConfig parses a config in the format named by ext (".json", ".yaml", ".yml", ".toml")
func DecodeSimConfig(data []byte, ext string) (*SimConfig, error) {
	var config SimConfig
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	case ".toml":
		err = toml.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", ext, err)
	}
	return &config, nil
}

// EncodeSimConfig renders a config in the format named by ext
func EncodeSimConfig(config *SimConfig, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return json.MarshalIndent(config, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(config)
	case ".toml":
		return toml.Marshal(config)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// IsConfigFile reports whether a file name has a supported config extension
func IsConfigFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// LoadSimConfig loads and validates a config file
func LoadSimConfig(filename string) (*SimConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config, err := DecodeSimConfig(data, filepath.Ext(filename))
	if err != nil {
		return nil, err
	}
	if err := ValidateSimConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}
