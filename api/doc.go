// Package api provides the HTTP REST API of the traffic simulator.
//
// Endpoints:
//
// Sessions:
//   - POST   /api/sessions                      Create a session ({"config_id": "downtown"}; empty uses the default)
//   - GET    /api/sessions                      List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET    /api/sessions/{id}                 Session summary: tick, agent states, diagnostics
//   - DELETE /api/sessions/{id}                 Delete a session
//
// Simulation:
//   - POST /api/sessions/{id}/step             Advance {"ticks": N} (or ?ticks=N), capped at service.MaxStepTicks
//   - POST /api/sessions/{id}/reset            Clear junctions and rebuild the roster
//   - POST /api/sessions/{id}/debug            Toggle debug annotations ({"enabled": true})
//   - GET  /api/sessions/{id}/snapshot         Full snapshot: layout, agents, junctions
//   - GET  /api/sessions/{id}/junctions        Junction occupancy, queues and allowed exits
//   - GET  /api/sessions/{id}/agents/{agentID} One agent
//
// Configuration:
//   - GET  /api/configs                        List configurations
//   - POST /api/configs                        Save a configuration (SimConfig plus optional "config_id")
//   - GET  /api/configs/{name}                 Load one configuration
//
// Streaming:
//   - GET /ws?session={id}                     WebSocket snapshot stream (see transport/websocket)
//
// Errors are returned as {"error": "..."} with 404 for unknown sessions,
// configs and agents, 400 for invalid input and 409 for ID conflicts.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	server := api.NewServer(simService, hub)
//	http.ListenAndServe(":8080", server)
package api
