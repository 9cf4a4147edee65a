// Package status defines the agent status enum and the fixed transition table.
//
// # Statuses
//
// An agent is always in exactly one of six statuses:
//
//   - Available: ready to take calls
//   - Busy: on a call
//   - Wrap: after-call work
//   - Break: scheduled pause
//   - Not Ready: present but unavailable
//   - Offline: not logged in
//
// # Transition Table
//
// Transitions are validated against a fixed table; anything not listed is
// rejected, including self-loops. Offline is special: its only table exit is
// to Available (logging in), and entering Offline outside the table happens
// only through the engine's forced path on disconnect.
//
// The table is data, not behavior: this package never touches storage and
// performs no side effects.
package status
