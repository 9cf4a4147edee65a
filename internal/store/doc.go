// Package store provides persistent storage for the wallboard using SQLite.
//
// # Data Models
//
//   - Agent: directory record with profile, current status, and liveness
//   - StatusHistoryEntry: immutable audit record of one accepted transition
//   - Message: supervisor message to one agent or to ALL
//
// # Store Interface
//
// SQLiteStore is the production implementation; MockStore is an in-memory
// implementation for tests with per-operation fault injection.
//
// UpdateAgentStatus is the one compound operation: the status column update
// and the history insert happen in a single transaction, so the audit trail
// can never drift from the agent's current status.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 text in UTC.
package store
