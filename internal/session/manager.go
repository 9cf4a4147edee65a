// ABOUTME: Orchestrates session lifecycle: login, logout, disconnect, dashboard join.
// ABOUTME: Sole mutator of the connection registry; wires sessions to the broadcaster.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wallboard/wallboard/internal/broadcast"
	"github.com/wallboard/wallboard/internal/engine"
	"github.com/wallboard/wallboard/internal/registry"
	"github.com/wallboard/wallboard/internal/store"
)

// handlerFunc processes one inbound client event.
type handlerFunc func(ctx context.Context, s *Session, data json.RawMessage)

// Config carries the manager's collaborators and tuning.
type Config struct {
	Registry    *registry.Registry
	Broadcaster *broadcast.Broadcaster
	Engine      *engine.Engine
	Store       store.Store
	Logger      *slog.Logger

	// HeartbeatInterval is how often the server pings idle sessions.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how long a session may stay unresponsive before
	// it is treated as disconnected.
	HeartbeatTimeout time.Duration
}

// Manager coordinates live sessions. It is the only component that mutates
// the connection registry, and every teardown path (logout, transport
// disconnect, heartbeat timeout, supersede) funnels through the same
// once-guarded routine.
type Manager struct {
	registry    *registry.Registry
	broadcaster *broadcast.Broadcaster
	engine      *engine.Engine
	store       store.Store
	logger      *slog.Logger

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	handlers map[string]handlerFunc
}

// NewManager creates a session Manager.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		registry:          cfg.Registry,
		broadcaster:       cfg.Broadcaster,
		engine:            cfg.Engine,
		store:             cfg.Store,
		logger:            cfg.Logger.With("component", "sessions"),
		heartbeatInterval: cfg.HeartbeatInterval,
		heartbeatTimeout:  cfg.HeartbeatTimeout,
		sessions:          make(map[string]*Session),
	}

	// The inbound event set is closed: anything not in this table is
	// logged and dropped.
	m.handlers = map[string]handlerFunc{
		broadcast.EventAgentLogin:    m.handleLogin,
		broadcast.EventAgentLogout:   m.handleLogout,
		broadcast.EventJoinDashboard: m.handleJoinDashboard,
		broadcast.EventSendMessage:   m.handleSendMessage,
		broadcast.EventPing:          m.handlePing,
	}
	return m
}

// clientEnvelope is the wire shape of one inbound client event.
type clientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type loginPayload struct {
	AgentCode string `json:"agentCode"`
	AgentName string `json:"agentName"`
}

type sendMessagePayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// NewSession creates and tracks a session for a freshly accepted
// connection, and subscribes it to the global audience. A nil conn is
// allowed for sessions driven directly in tests.
func (m *Manager) NewSession(conn *websocket.Conn) *Session {
	s := newSession(conn)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.broadcaster.Subscribe(broadcast.Global, s.ID, s.send)
	m.logger.Debug("session connected", "session_id", s.ID)
	return s
}

// Dispatch routes one raw inbound frame to its handler.
func (m *Manager) Dispatch(ctx context.Context, s *Session, raw []byte) {
	var env clientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.logger.Warn("malformed client frame", "session_id", s.ID, "error", err)
		return
	}

	handler, ok := m.handlers[env.Event]
	if !ok {
		m.logger.Warn("unknown client event", "session_id", s.ID, "event", env.Event)
		return
	}
	handler(ctx, s, env.Data)
}

func (m *Manager) handleLogin(ctx context.Context, s *Session, data json.RawMessage) {
	var p loginPayload
	if err := json.Unmarshal(data, &p); err != nil || p.AgentCode == "" {
		s.Enqueue(broadcast.Event{Event: broadcast.EventLoginError,
			Data: broadcast.LoginError{Message: "agentCode is required"}})
		return
	}
	m.Login(ctx, s, p.AgentCode, p.AgentName)
}

func (m *Manager) handleLogout(ctx context.Context, s *Session, _ json.RawMessage) {
	m.Logout(ctx, s)
}

func (m *Manager) handleJoinDashboard(ctx context.Context, s *Session, _ json.RawMessage) {
	m.JoinDashboard(ctx, s)
}

func (m *Manager) handleSendMessage(ctx context.Context, s *Session, data json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		m.logger.Warn("malformed sendMessage payload", "session_id", s.ID, "error", err)
		return
	}
	if _, err := m.DeliverMessage(ctx, p.From, p.To, p.Message); err != nil {
		m.logger.Error("delivering message failed", "session_id", s.ID, "error", err)
	}
}

func (m *Manager) handlePing(_ context.Context, s *Session, _ json.RawMessage) {
	s.Enqueue(broadcast.Event{Event: broadcast.EventPong})
}

// Login resolves the agent identity, registers the session, marks the agent
// online, and announces the arrival. Failures are reported to the session
// as login-error events and never tear the process down.
func (m *Manager) Login(ctx context.Context, s *Session, agentCode, agentName string) {
	if s.AgentCode() != "" {
		s.Enqueue(broadcast.Event{Event: broadcast.EventLoginError,
			Data: broadcast.LoginError{Message: "session is already logged in"}})
		return
	}

	agent, err := m.store.GetAgentByCode(ctx, agentCode)
	if errors.Is(err, store.ErrNotFound) {
		s.Enqueue(broadcast.Event{Event: broadcast.EventLoginError,
			Data: broadcast.LoginError{Message: fmt.Sprintf("Agent %s not found", agentCode)}})
		return
	}
	if err != nil {
		m.logger.Error("loading agent for login failed", "agent_code", agentCode, "error", err)
		s.Enqueue(broadcast.Event{Event: broadcast.EventLoginError,
			Data: broadcast.LoginError{Message: "Login failed"}})
		return
	}

	superseded, err := m.registry.Register(s.ID, agentCode, agentName)
	if errors.Is(err, registry.ErrDuplicateSession) {
		s.Enqueue(broadcast.Event{Event: broadcast.EventLoginError,
			Data: broadcast.LoginError{Message: fmt.Sprintf("Agent %s already has an active session", agentCode)}})
		return
	}
	if superseded != "" {
		m.closeSuperseded(ctx, superseded)
	}

	now := time.Now().UTC()
	if err := m.store.SetAgentOnline(ctx, agentCode, true, &s.ID, &now); err != nil {
		m.logger.Error("marking agent online failed", "agent_code", agentCode, "error", err)
		m.registry.Deregister(s.ID)
		s.Enqueue(broadcast.Event{Event: broadcast.EventLoginError,
			Data: broadcast.LoginError{Message: "Login failed"}})
		return
	}

	s.setIdentity(agentCode, agentName)
	m.broadcaster.Subscribe(broadcast.AgentRoom(agentCode), s.ID, s.send)

	agent.IsOnline = true
	agent.SessionID = &s.ID
	agent.LoginTime = &now

	s.Enqueue(broadcast.Event{Event: broadcast.EventLoginSuccess, Data: broadcast.LoginSuccess{
		Agent:   broadcast.AgentStateFrom(agent),
		Message: "Successfully connected to Agent Wallboard System",
	}})
	m.broadcaster.PublishExcept(broadcast.Global, broadcast.Event{
		Event: broadcast.EventAgentOnline,
		Data:  broadcast.AgentPresence{AgentCode: agentCode, AgentName: agentName, Timestamp: now},
	}, s.ID)
	m.BroadcastDashboard(ctx)

	m.logger.Info("agent logged in", "agent_code", agentCode, "session_id", s.ID)
}

// closeSuperseded tears down the session replaced by a newer login for the
// same agent. Its registry entry is already gone, so the shared teardown
// skips the offline transition: the agent is still online on the new
// session.
func (m *Manager) closeSuperseded(ctx context.Context, sessionID string) {
	m.mu.Lock()
	old := m.sessions[sessionID]
	m.mu.Unlock()
	if old == nil {
		return
	}

	old.Enqueue(broadcast.Event{Event: broadcast.EventLoginError,
		Data: broadcast.LoginError{Message: "session superseded by a newer login"}})
	m.teardown(ctx, old)
}

// Logout is the explicit client-initiated teardown.
func (m *Manager) Logout(ctx context.Context, s *Session) {
	m.teardown(ctx, s)
}

// Disconnect is the transport-initiated teardown (close, error, or
// heartbeat timeout). Racing with Logout is safe: the routine runs once.
func (m *Manager) Disconnect(ctx context.Context, s *Session) {
	m.teardown(ctx, s)
}

// DisconnectAgent tears down the live session for the given agent code, if
// one exists. This is the administrative path, used when an agent record is
// deleted out from under its session. Reports whether a session was found.
func (m *Manager) DisconnectAgent(ctx context.Context, agentCode string) bool {
	sessionID, ok := m.registry.LookupByAgent(agentCode)
	if !ok {
		return false
	}

	m.mu.Lock()
	s := m.sessions[sessionID]
	m.mu.Unlock()
	if s == nil {
		return false
	}

	m.teardown(ctx, s)
	return true
}

// teardown deregisters the session and, if it owned its agent's liveness,
// forces the agent Offline and announces the departure. Every failure here
// is logged and swallowed: a disconnect must never leave the process in an
// error state.
func (m *Manager) teardown(ctx context.Context, s *Session) {
	s.once.Do(func() {
		m.broadcaster.DropSession(s.ID)

		agentCode, owned := m.registry.Deregister(s.ID)
		if owned {
			if _, _, err := m.engine.ForceOffline(ctx, agentCode, nil); err != nil {
				m.logger.Warn("forcing offline on teardown failed", "agent_code", agentCode, "error", err)
			}
			if err := m.store.SetAgentOnline(ctx, agentCode, false, nil, nil); err != nil {
				m.logger.Warn("marking agent offline failed", "agent_code", agentCode, "error", err)
			}
			m.broadcaster.Publish(broadcast.Global, broadcast.Event{
				Event: broadcast.EventAgentOffline,
				Data: broadcast.AgentPresence{
					AgentCode: agentCode,
					AgentName: s.AgentName(),
					Timestamp: time.Now().UTC(),
				},
			})
			m.BroadcastDashboard(ctx)
			m.logger.Info("agent disconnected", "agent_code", agentCode, "session_id", s.ID)
		} else {
			m.logger.Debug("teardown for unregistered session", "session_id", s.ID)
		}

		s.closeTransport()

		m.mu.Lock()
		delete(m.sessions, s.ID)
		m.mu.Unlock()
	})
}

// JoinDashboard subscribes the session to the dashboard audience and
// immediately pushes the current snapshot: the broadcaster keeps no
// history, so late joiners must be served state explicitly.
func (m *Manager) JoinDashboard(ctx context.Context, s *Session) {
	m.broadcaster.Subscribe(broadcast.Dashboard, s.ID, s.send)

	snapshot, err := m.store.Counts(ctx)
	if err != nil {
		m.logger.Error("computing dashboard snapshot failed", "error", err)
		return
	}
	s.Enqueue(snapshotEvent(snapshot))
	m.logger.Debug("session joined dashboard", "session_id", s.ID)
}

// DeliverMessage persists a supervisor message and fans it out to its
// audience: the target agent's room, or everyone for the ALL sentinel.
func (m *Manager) DeliverMessage(ctx context.Context, from, to, content string) (*store.Message, error) {
	if from == "" || to == "" || content == "" {
		return nil, errors.New("from, to, and message are required")
	}

	msg := &store.Message{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	audience := broadcast.AgentRoom(to)
	if to == store.MessageTargetAll {
		audience = broadcast.Global
	}
	m.broadcaster.Publish(audience, broadcast.Event{
		Event: broadcast.EventNewMessage,
		Data: broadcast.NewMessage{
			From:      msg.From,
			To:        msg.To,
			Message:   msg.Content,
			Timestamp: msg.CreatedAt,
		},
	})
	return msg, nil
}

// BroadcastDashboard pushes a fresh snapshot to the dashboard audience.
func (m *Manager) BroadcastDashboard(ctx context.Context) {
	snapshot, err := m.store.Counts(ctx)
	if err != nil {
		m.logger.Error("computing dashboard snapshot failed", "error", err)
		return
	}
	m.broadcaster.Publish(broadcast.Dashboard, snapshotEvent(snapshot))
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown tears down every live session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.teardown(ctx, s)
	}
}

func snapshotEvent(snapshot *store.CountsSnapshot) broadcast.Event {
	return broadcast.Event{
		Event: broadcast.EventDashboardUpdate,
		Data: broadcast.DashboardUpdate{
			TotalAgents:     snapshot.TotalAgents,
			OnlineAgents:    snapshot.OnlineAgents,
			OfflineAgents:   snapshot.OfflineAgents,
			StatusBreakdown: snapshot.StatusBreakdown,
			Timestamp:       time.Now().UTC(),
		},
	}
}
