// Package engine validates and applies agent status transitions.
//
// # Overview
//
// The Engine is the single write path for agent status. Every change, whether
// requested by the agent over the websocket or by a supervisor over the REST
// API, goes through RequestTransition, which checks the transition table,
// persists the change together with its audit record in one atomic store
// operation, and returns a StatusChanged event for the caller to broadcast.
//
// # Forced Transitions
//
// ForceOffline bypasses the table for the one case where reality outranks
// policy: a dropped connection means the agent is gone no matter what status
// they were in. Forced transitions are still audited.
//
// # Errors
//
//   - ErrAgentNotFound: no agent with the given code or ID
//   - InvalidStatusError: the target is not a known status
//   - IllegalTransitionError: the target is known but not reachable from the
//     current status; carries the allowed set for error messages
//
// The engine never broadcasts. Announcing an accepted change is the caller's
// job, after the write has succeeded.
package engine
