// Package gateway wires the wallboard components together and serves the
// HTTP surface.
//
// # Endpoints
//
//	GET    /health                    liveness, store reachability, counts
//	GET    /ws                        websocket endpoint for agents/dashboards
//	GET    /api/agents                list agents (?department=, ?status=, ?online=)
//	POST   /api/agents                create an agent
//	GET    /api/agents/{id}           fetch one agent
//	PUT    /api/agents/{id}           update profile fields
//	DELETE /api/agents/{id}           delete an agent
//	PATCH  /api/agents/{id}/status    supervisor-driven status transition
//	GET    /api/agents/{id}/history   status audit trail
//	GET    /api/messages              all messages
//	POST   /api/messages              send a message (To: agent code or ALL)
//	GET    /api/messages/{agentCode}  messages visible to one agent
//	DELETE /api/messages/{id}         delete a message
//
// REST-driven status changes go through the same engine as websocket-driven
// ones and fan out over the same broadcaster, so dashboards see supervisor
// actions in real time.
package gateway
