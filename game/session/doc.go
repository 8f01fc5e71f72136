// Package session provides session management for the traffic simulator.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Snapshot persistence to JSON files
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Each session owns its own engine.Simulation plus metadata like the config
// it was started from, creation time and last access time.
//
// Session Identifiers:
//
// Generated IDs are the first eight hex characters of a random UUID. Custom
// IDs are accepted and matched case-insensitively.
//
// Persistence:
//
// FilePersistence writes one JSON file per session holding an
// engine.Snapshot. Sessions missing from memory are restored on first access,
// and LoadPersistedSessions restores all of them at startup. Expired sessions
// are dropped from memory only; their files stay on disk.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(persistence)
//
//	sess, err := manager.Create("", "downtown", simConfig)
//	sess.Sim.StepN(100)
//	manager.Save(sess.ID)
package session
