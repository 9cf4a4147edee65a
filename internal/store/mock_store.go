// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wallboard/wallboard/internal/status"
)

// MockStore is an in-memory Store implementation for testing.
// Individual operations can be made to fail by setting the corresponding
// error field (e.g. FailUpdateStatus) before the call.
type MockStore struct {
	mu       sync.RWMutex
	agents   map[string]*Agent                // keyed by agent ID
	byCode   map[string]string                // agent code -> agent ID
	history  map[string][]*StatusHistoryEntry // keyed by agent ID
	messages map[string]*Message              // keyed by message ID

	FailUpdateStatus error
	FailSetOnline    error
	FailCounts       error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		agents:   make(map[string]*Agent),
		byCode:   make(map[string]string),
		history:  make(map[string][]*StatusHistoryEntry),
		messages: make(map[string]*Message),
	}
}

// CreateAgent stores a new agent.
func (m *MockStore) CreateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCode[agent.AgentCode]; exists {
		return ErrDuplicateAgent
	}
	for _, a := range m.agents {
		if a.Email == agent.Email {
			return ErrDuplicateAgent
		}
	}

	// Copy to avoid external modification
	a := *agent
	m.agents[a.ID] = &a
	m.byCode[a.AgentCode] = a.ID
	return nil
}

// GetAgent retrieves an agent by ID.
func (m *MockStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	return &result, nil
}

// GetAgentByCode retrieves an agent by code.
func (m *MockStore) GetAgentByCode(ctx context.Context, code string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.agents[id]
	return &result, nil
}

// ListAgents returns agents matching the filter, sorted by agent code.
func (m *MockStore) ListAgents(ctx context.Context, filter AgentFilter) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var agents []*Agent
	for _, a := range m.agents {
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.Department != nil && a.Department != *filter.Department {
			continue
		}
		if filter.IsOnline != nil && a.IsOnline != *filter.IsOnline {
			continue
		}
		result := *a
		agents = append(agents, &result)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].AgentCode < agents[j].AgentCode
	})
	return agents, nil
}

// UpdateAgent updates an agent's profile fields.
func (m *MockStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.agents[agent.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = agent.Name
	existing.Email = agent.Email
	existing.Department = agent.Department
	existing.Skills = agent.Skills
	existing.IsActive = agent.IsActive
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteAgent removes an agent and returns the deleted record.
func (m *MockStore) DeleteAgent(ctx context.Context, id string) (*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.agents, id)
	delete(m.byCode, a.AgentCode)
	delete(m.history, id)
	result := *a
	return &result, nil
}

// UpdateAgentStatus applies the status change and appends a history entry.
func (m *MockStore) UpdateAgentStatus(ctx context.Context, agentID string, from, to status.Status, reason *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpdateStatus != nil {
		return m.FailUpdateStatus
	}

	a, ok := m.agents[agentID]
	if !ok {
		return ErrNotFound
	}
	a.Status = to
	a.LastStatusChangeAt = at
	a.UpdatedAt = at
	m.history[agentID] = append(m.history[agentID], &StatusHistoryEntry{
		ID:      uuid.New().String(),
		AgentID: agentID,
		From:    from,
		To:      to,
		Reason:  reason,
		At:      at,
	})
	return nil
}

// StatusHistory returns the agent's history entries, oldest first.
func (m *MockStore) StatusHistory(ctx context.Context, agentID string) ([]*StatusHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*StatusHistoryEntry, 0, len(m.history[agentID]))
	for _, e := range m.history[agentID] {
		result := *e
		entries = append(entries, &result)
	}
	return entries, nil
}

// SetAgentOnline flips the online flag for the agent with the given code.
func (m *MockStore) SetAgentOnline(ctx context.Context, code string, online bool, sessionID *string, loginTime *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSetOnline != nil {
		return m.FailSetOnline
	}

	id, ok := m.byCode[code]
	if !ok {
		return ErrNotFound
	}
	a := m.agents[id]
	a.IsOnline = online
	a.SessionID = sessionID
	a.LoginTime = loginTime
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveMessage persists a message.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := *msg
	m.messages[msg.ID] = &result
	return nil
}

// ListMessages returns all messages, newest first.
func (m *MockStore) ListMessages(ctx context.Context) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var messages []*Message
	for _, msg := range m.messages {
		result := *msg
		messages = append(messages, &result)
	}
	sortMessages(messages)
	return messages, nil
}

// MessagesForAgent returns messages addressed to the code or ALL, newest first.
func (m *MockStore) MessagesForAgent(ctx context.Context, code string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var messages []*Message
	for _, msg := range m.messages {
		if msg.To != code && msg.To != MessageTargetAll {
			continue
		}
		result := *msg
		messages = append(messages, &result)
	}
	sortMessages(messages)
	return messages, nil
}

// DeleteMessage removes a message by ID.
func (m *MockStore) DeleteMessage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[id]; !ok {
		return ErrNotFound
	}
	delete(m.messages, id)
	return nil
}

// Counts computes the dashboard aggregates over active agents.
func (m *MockStore) Counts(ctx context.Context) (*CountsSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailCounts != nil {
		return nil, m.FailCounts
	}

	snapshot := &CountsSnapshot{StatusBreakdown: make(map[string]int)}
	for _, a := range m.agents {
		if !a.IsActive {
			continue
		}
		snapshot.TotalAgents++
		if a.IsOnline {
			snapshot.OnlineAgents++
			snapshot.StatusBreakdown[string(a.Status)]++
		}
	}
	snapshot.OfflineAgents = snapshot.TotalAgents - snapshot.OnlineAgents
	return snapshot, nil
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

func sortMessages(messages []*Message) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID > messages[j].ID
		}
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
}
