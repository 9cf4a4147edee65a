// ABOUTME: Store interface and data types for wallboard persistence
// ABOUTME: Defines Agent, StatusHistoryEntry, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"

	"github.com/wallboard/wallboard/internal/status"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateAgent is returned when creating an agent whose code or email is taken
var ErrDuplicateAgent = errors.New("agent already exists")

// MessageTargetAll is the sentinel recipient for messages addressed to every agent.
const MessageTargetAll = "ALL"

// Departments an agent may belong to.
var Departments = []string{"Sales", "Support", "Technical", "General", "Supervisor"}

// Agent is the durable record of a call-center agent.
// Status is written only through Store.UpdateAgentStatus; the transition
// engine is the single writer for that column.
type Agent struct {
	ID                 string
	AgentCode          string // unique, immutable after creation
	Name               string
	Email              string
	Department         string
	Skills             []string
	Status             status.Status
	IsActive           bool
	IsOnline           bool
	SessionID          *string // live session back-reference, not owned
	LoginTime          *time.Time
	LastStatusChangeAt time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusHistoryEntry is an immutable audit record of one accepted transition.
type StatusHistoryEntry struct {
	ID      string
	AgentID string
	From    status.Status
	To      status.Status
	Reason  *string
	At      time.Time
}

// Message is a free-text message from a supervisor to one agent or to ALL.
type Message struct {
	ID        string
	From      string
	To        string // agent code or MessageTargetAll
	Content   string
	CreatedAt time.Time
}

// AgentFilter narrows ListAgents results. Nil fields match everything.
type AgentFilter struct {
	Status     *status.Status
	Department *string
	IsOnline   *bool
}

// CountsSnapshot aggregates current agent counts for the dashboard.
// StatusBreakdown covers online agents only.
type CountsSnapshot struct {
	TotalAgents     int
	OnlineAgents    int
	OfflineAgents   int
	StatusBreakdown map[string]int
}

// Store is the interface for wallboard persistence operations
type Store interface {
	// Agent operations
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	GetAgentByCode(ctx context.Context, code string) (*Agent, error)
	ListAgents(ctx context.Context, filter AgentFilter) ([]*Agent, error)
	UpdateAgent(ctx context.Context, agent *Agent) error
	DeleteAgent(ctx context.Context, id string) (*Agent, error)

	// UpdateAgentStatus persists a status change and its history entry in a
	// single transaction. No partial state is ever visible to readers.
	UpdateAgentStatus(ctx context.Context, agentID string, from, to status.Status, reason *string, at time.Time) error
	StatusHistory(ctx context.Context, agentID string) ([]*StatusHistoryEntry, error)

	// SetAgentOnline flips the online flag and session back-reference.
	// It never touches the status column.
	SetAgentOnline(ctx context.Context, code string, online bool, sessionID *string, loginTime *time.Time) error

	// Message operations
	SaveMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context) ([]*Message, error)
	MessagesForAgent(ctx context.Context, code string) ([]*Message, error)
	DeleteMessage(ctx context.Context, id string) error

	// Counts computes the dashboard snapshot aggregates.
	Counts(ctx context.Context) (*CountsSnapshot, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
