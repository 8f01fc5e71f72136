// Package mcp exposes the traffic simulator to AI agents over the Model
// Context Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against a
// running `serve` instance, and the JSON response is rendered as text.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - step: advance a session by N ticks
//   - snapshot: the city map with cars overlaid, plus states and diagnostics
//   - junctions: occupant, queue and allowed exits of every junction
//   - agent: the full state of one car
//   - describe_cell: kind, junction status and cars at one grid cell
//   - reset, set_debug
//   - list_configs, simulation_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
// Snapshot overlay:
//
//	o driving   w waiting   X collision   r respawned   # held junction
package mcp
