// ABOUTME: Status transition engine validating requests against the transition table.
// ABOUTME: Single writer for agent status; persists atomically and returns event descriptors.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wallboard/wallboard/internal/status"
	"github.com/wallboard/wallboard/internal/store"
)

// ErrAgentNotFound indicates the agent code or ID could not be resolved.
var ErrAgentNotFound = errors.New("agent not found")

// InvalidStatusError indicates the requested target is not a recognized status.
type InvalidStatusError struct {
	Attempted status.Status
	Valid     []status.Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q, valid statuses: %v", e.Attempted, e.Valid)
}

// IllegalTransitionError indicates the target is not reachable from the
// current status per the transition table.
type IllegalTransitionError struct {
	Current   status.Status
	Attempted status.Status
	Allowed   []status.Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot change from %s to %s, valid transitions: %v", e.Current, e.Attempted, e.Allowed)
}

// StatusChanged describes one accepted transition, for the caller to hand
// to the broadcaster after persistence has succeeded.
type StatusChanged struct {
	AgentID        string
	AgentCode      string
	PreviousStatus status.Status
	NewStatus      status.Status
	Reason         *string
	At             time.Time
}

// Engine validates and applies status transitions. It never broadcasts:
// announcing a change is the caller's job, after the write has succeeded.
//
// Transitions are serialized per agent: the current status is re-read under
// the agent's lock, so two concurrent requests can never both validate
// against the same stale status and break the history chain.
type Engine struct {
	store  store.Store
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // agent ID -> transition lock
}

// New creates an Engine backed by the given store.
func New(s store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  s,
		logger: logger.With("component", "engine"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// agentLock returns the transition lock for one agent, creating it on first
// use. Locks are never removed; the set is bounded by the agent directory.
func (e *Engine) agentLock(agentID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[agentID] = lock
	}
	return lock
}

// RequestTransition validates target against the transition table for the
// agent with the given code, persists the change atomically, and returns the
// updated agent plus a StatusChanged descriptor.
//
// Self-loops always fail: re-requesting the current status is an
// IllegalTransitionError, not a no-op.
func (e *Engine) RequestTransition(ctx context.Context, agentCode string, target status.Status, reason *string) (*store.Agent, *StatusChanged, error) {
	agent, err := e.store.GetAgentByCode(ctx, agentCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading agent %s: %w", agentCode, err)
	}
	return e.apply(ctx, agent.ID, target, reason, false)
}

// RequestTransitionByID is RequestTransition keyed by agent ID, for the
// HTTP status endpoint which addresses agents by record ID.
func (e *Engine) RequestTransitionByID(ctx context.Context, agentID string, target status.Status, reason *string) (*store.Agent, *StatusChanged, error) {
	return e.apply(ctx, agentID, target, reason, false)
}

// ForceOffline records a transition to Offline without consulting the
// transition table. This is the privileged disconnect path: the table only
// lists Available and Not Ready as Offline-capable, but a vanished session
// must always land on Offline. Returns a nil event when the agent is
// already Offline.
func (e *Engine) ForceOffline(ctx context.Context, agentCode string, reason *string) (*store.Agent, *StatusChanged, error) {
	agent, err := e.store.GetAgentByCode(ctx, agentCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading agent %s: %w", agentCode, err)
	}
	return e.apply(ctx, agent.ID, status.Offline, reason, true)
}

// apply performs validation (unless forced), the atomic write, and builds
// the event descriptor. Validation failures never reach the store.
//
// The agent is loaded under its transition lock: any snapshot the caller
// used to resolve the ID may already be stale, so the status that gets
// validated is always the one the write will replace.
func (e *Engine) apply(ctx context.Context, agentID string, target status.Status, reason *string, forced bool) (*store.Agent, *StatusChanged, error) {
	if !status.Valid(target) {
		return nil, nil, &InvalidStatusError{Attempted: target, Valid: status.All()}
	}

	lock := e.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := e.store.GetAgent(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading agent %s: %w", agentID, err)
	}

	if forced && agent.Status == status.Offline {
		return agent, nil, nil
	}

	if !forced && !status.CanTransition(agent.Status, target) {
		return nil, nil, &IllegalTransitionError{
			Current:   agent.Status,
			Attempted: target,
			Allowed:   status.AllowedNextStates(agent.Status),
		}
	}

	previous := agent.Status
	at := time.Now().UTC()

	if err := e.store.UpdateAgentStatus(ctx, agent.ID, previous, target, reason, at); err != nil {
		return nil, nil, fmt.Errorf("persisting status transition: %w", err)
	}

	agent.Status = target
	agent.LastStatusChangeAt = at
	agent.UpdatedAt = at

	e.logger.Info("status transition applied",
		"agent_code", agent.AgentCode,
		"from", previous,
		"to", target,
		"forced", forced,
	)

	return agent, &StatusChanged{
		AgentID:        agent.ID,
		AgentCode:      agent.AgentCode,
		PreviousStatus: previous,
		NewStatus:      target,
		Reason:         reason,
		At:             at,
	}, nil
}
