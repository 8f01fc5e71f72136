package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
	"github.com/wricardo/mcp-training/gridtraffic/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// extensions are tried in this order when a config is named without one
var extensions = []string{".json", ".yaml", ".yml", ".toml"}

// Manager handles simulation configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.SimConfig
	configs       map[string]*engine.SimConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.SimConfig),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// LoadConfig loads a configuration by name. The name may carry one of the
// supported extensions; without one, each extension is tried in turn.
func (m *Manager) LoadConfig(name string) (*engine.SimConfig, error) {
	id := configID(name)

	m.mu.RLock()
	// Check cache first
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	configPath, ok := m.findFile(name)
	if !ok {
		return nil, ErrConfigNotFound
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := engine.DecodeSimConfig(data, filepath.Ext(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := engine.ValidateSimConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.configs[id] = config
	return config, nil
}

// ListConfigs returns information about all available configurations,
// sorted by config ID. Files that fail to load are skipped with a warning.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !engine.IsConfigFile(entry.Name()) {
			continue
		}

		id := configID(entry.Name())
		if seen[id] {
			log.WithField("file", entry.Name()).Warnf("config %q is defined more than once, ignoring duplicate", id)
			continue
		}

		config, err := m.LoadConfig(entry.Name())
		if err != nil {
			log.WithError(err).WithField("file", entry.Name()).Warn("skipping invalid config")
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    id, // This is the identifier to use for session creation
			Name:        config.Name,
			Description: config.Description,
			Cols:        config.Cols,
			Rows:        config.Rows,
			AgentCount:  config.AgentCount,
			Generated:   len(config.Layout) == 0,
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.SimConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	return nil
}

// RefreshCache drops every cached configuration and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.SimConfig)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// loadDefaultConfig picks default.*, then the first listed config, then the
// built-in generated city
func (m *Manager) loadDefaultConfig() error {
	config, err := m.LoadConfig("default")
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			config = engine.DefaultSimConfig()
		} else if config, err = m.LoadConfig(configs[0].Filename); err != nil {
			config = engine.DefaultSimConfig()
		}
	}

	m.mu.Lock()
	m.defaultConfig = config
	m.mu.Unlock()
	return nil
}

// SaveConfig validates and writes a configuration. The format follows the
// extension in name, then the extension of an existing file, then JSON.
func (m *Manager) SaveConfig(name string, config *engine.SimConfig) error {
	if !validName(name) {
		return fmt.Errorf("%w: bad config name %q", ErrInvalidConfig, name)
	}
	if err := engine.ValidateSimConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	configPath := filepath.Join(m.configDir, name)
	if !engine.IsConfigFile(name) {
		if existing, ok := m.findFile(name); ok {
			configPath = existing
		} else {
			configPath += ".json"
		}
	}

	data, err := engine.EncodeSimConfig(config, filepath.Ext(configPath))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[configID(name)] = config
	m.mu.Unlock()

	log.WithField("file", filepath.Base(configPath)).Info("config saved")
	return nil
}

// findFile resolves a config name to a file in the config directory
func (m *Manager) findFile(name string) (string, bool) {
	if !validName(name) {
		return "", false
	}
	candidates := []string{name}
	if !engine.IsConfigFile(name) {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, name+ext)
		}
	}
	for _, candidate := range candidates {
		path := filepath.Join(m.configDir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// configID strips a supported extension from a file or config name
func configID(name string) string {
	if engine.IsConfigFile(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// validName rejects names that would escape the config directory
func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
