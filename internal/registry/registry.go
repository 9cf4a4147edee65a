// ABOUTME: In-memory registry of live sessions mapped to agent identities.
// ABOUTME: Source of truth for who is connected right now; rebuilt empty on restart.

package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrDuplicateSession indicates a second login for an agent with an active
// session while the registry is configured to reject duplicates.
var ErrDuplicateSession = errors.New("agent already has an active session")

// Policy decides what happens when a second login arrives for an agent
// that already has an active session.
type Policy string

const (
	// PolicySupersede replaces the previous session with the new one.
	PolicySupersede Policy = "supersede"
	// PolicyReject refuses the new login.
	PolicyReject Policy = "reject"
)

// Entry records one live session's identity mapping.
type Entry struct {
	SessionID   string
	AgentCode   string
	DisplayName string
	LoginTime   time.Time
}

// Registry maps live session IDs to agent identities. It is purely
// transient: it owns session liveness, not persisted truth. All operations
// are synchronous and hold no locks across any I/O.
type Registry struct {
	mu       sync.RWMutex
	policy   Policy
	sessions map[string]*Entry // sessionID -> entry
	byAgent  map[string]string // agentCode -> active sessionID
	logger   *slog.Logger
}

// New creates a Registry with the given duplicate-login policy.
func New(policy Policy, logger *slog.Logger) *Registry {
	return &Registry{
		policy:   policy,
		sessions: make(map[string]*Entry),
		byAgent:  make(map[string]string),
		logger:   logger.With("component", "registry"),
	}
}

// Register adds a session for the given agent. If the agent already has an
// active session, the configured policy applies: supersede removes the old
// entry and returns its session ID, reject returns ErrDuplicateSession.
func (r *Registry) Register(sessionID, agentCode, displayName string) (superseded string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byAgent[agentCode]; ok {
		if r.policy == PolicyReject {
			return "", ErrDuplicateSession
		}
		delete(r.sessions, existing)
		superseded = existing
		r.logger.Info("session superseded",
			"agent_code", agentCode,
			"old_session", existing,
			"new_session", sessionID,
		)
	}

	r.sessions[sessionID] = &Entry{
		SessionID:   sessionID,
		AgentCode:   agentCode,
		DisplayName: displayName,
		LoginTime:   time.Now(),
	}
	r.byAgent[agentCode] = sessionID

	r.logger.Info("session registered",
		"session_id", sessionID,
		"agent_code", agentCode,
		"total_sessions", len(r.sessions),
	)
	return superseded, nil
}

// Deregister removes a session and returns the agent code it carried.
// Entries are matched strictly by session ID, so a stale disconnect for a
// superseded session never removes the superseding session's entry.
func (r *Registry) Deregister(sessionID string) (agentCode string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.sessions[sessionID]
	if !exists {
		return "", false
	}
	delete(r.sessions, sessionID)

	// Only clear the agent mapping if this session still owns it.
	if r.byAgent[entry.AgentCode] == sessionID {
		delete(r.byAgent, entry.AgentCode)
	}

	r.logger.Info("session deregistered",
		"session_id", sessionID,
		"agent_code", entry.AgentCode,
		"total_sessions", len(r.sessions),
	)
	return entry.AgentCode, true
}

// LookupByAgent returns the active session ID for an agent code.
func (r *Registry) LookupByAgent(agentCode string) (sessionID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok = r.byAgent[agentCode]
	return sessionID, ok
}

// Get returns the entry for a session ID.
func (r *Registry) Get(sessionID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	result := *entry
	return &result, true
}

// Entries returns a snapshot of all live sessions, sorted by agent code.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AgentCode < entries[j].AgentCode
	})
	return entries
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
