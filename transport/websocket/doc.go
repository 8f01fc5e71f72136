// Package websocket streams simulation snapshots to browser and tool clients.
//
// A single Hub owns every connection. Clients subscribe to one session by
// connecting to /ws?session=<id>; each update for that session is sent as one
// JSON text frame:
//
//	{"session_id": "1f3a9c2e", "event": "snapshot", "snapshot": {...}}
//
// Events are "snapshot" (after steps and on autoplay ticks), "reset" and
// "session_deleted". Incoming client frames are read only to keep the
// connection alive.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//	hub.BroadcastSnapshot(id, snap)
//
// Clients whose send buffer fills up are dropped rather than slowing the
// broadcaster down. Cancelling the context passed to Run closes every client.
package websocket
