// Package session manages live websocket sessions and their lifecycle.
//
// # Overview
//
// A Session is one websocket connection: an outbound event queue, a write
// pump, and an optional agent identity bound at login. The Manager
// orchestrates the lifecycle and is the only component that mutates the
// connection registry.
//
// # Protocol
//
// Clients send JSON envelopes {"event": ..., "data": ...}. The inbound event
// set is closed: agent-login, agent-logout, join-dashboard, sendMessage, and
// ping. Unknown or malformed frames are logged and dropped.
//
// # Teardown
//
// Every way a session ends (explicit logout, transport close, heartbeat
// timeout, supersede by a newer login) funnels into one once-guarded routine.
// If the session still owned its agent's liveness, the agent is forced
// Offline, marked offline in the store, and the departure is announced. A
// stale disconnect from a superseded session finds its registry entry gone
// and skips all of that, so the new session is unaffected.
//
// # Heartbeats
//
// The server pings on HeartbeatInterval; a connection that produces no frame
// or pong within HeartbeatTimeout is treated as disconnected.
package session
