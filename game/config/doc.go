// Package config provides configuration management for the traffic simulator.
//
// The config package handles:
//   - Loading simulation configs from JSON, YAML and TOML files
//   - Configuration validation
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Each file describes one city: grid size, cell size, car count, an optional
// seed and either a fixed layout or the generator knobs used to build one when
// a session starts. Layout rows use '.' for empty ground, '>' '<' 'v' '^' for
// one-way roads, '+' for junctions and 'B' for buildings.
//
//	name: downtown
//	cols: 12
//	rows: 12
//	cell_size: 20
//	agent_count: 12
//	layout:
//	  - "....v...v..."
//	  - ">>>>+>>>+>>>"
//
// Configs are addressed by their file name without extension. When no
// default.* file exists, the first listed config becomes the default, and an
// empty directory falls back to a generated 50x50 city with 160 cars.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	simConfig, err := manager.LoadConfig("downtown")
//	configs, err := manager.ListConfigs()
package config
