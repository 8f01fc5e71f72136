// Package service provides the business logic layer for the traffic simulator.
//
// The service package implements:
//   - Multi-session simulation management
//   - Configuration loading, including generated layouts
//   - Stepping, autoplay and reset
//   - Read-only inspection of snapshots, junctions and cars
//
// Core Interfaces:
//
// SimulationService is the main service interface used by every transport.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages simulation configuration loading and validation.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the engine. Each session owns an independent engine.Simulation. Simulations
// are not safe for concurrent use, so the service serializes every call that
// steps or mutates a session.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	simService := service.NewSimulationService(sessionMgr, configMgr)
//
//	info, err := simService.CreateSession(ctx, "downtown")
//	result, err := simService.Step(ctx, info.ID, 100)
package service
