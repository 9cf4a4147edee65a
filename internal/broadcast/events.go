// ABOUTME: Typed event catalog for the wallboard wire protocol.
// ABOUTME: Enumerates client and server event names and their payload shapes.

package broadcast

import (
	"time"

	"github.com/wallboard/wallboard/internal/store"
)

// Client -> server event names.
const (
	EventAgentLogin    = "agent-login"
	EventAgentLogout   = "agent-logout"
	EventJoinDashboard = "join-dashboard"
	EventSendMessage   = "sendMessage"
	EventPing          = "ping"
)

// Server -> client event names.
const (
	EventLoginSuccess    = "login-success"
	EventLoginError      = "login-error"
	EventAgentOnline     = "agent-online"
	EventAgentOffline    = "agent-offline"
	EventStatusChanged   = "agentStatusChanged"
	EventDashboardUpdate = "dashboardUpdate"
	EventNewMessage      = "newMessage"
	EventPong            = "pong"
)

// Event is the wire envelope for one server -> client event.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// AgentState is the wire shape of one agent record. Domain structs never
// cross the socket directly; this keeps the JSON field names stable.
type AgentState struct {
	ID                 string     `json:"id"`
	AgentCode          string     `json:"agentCode"`
	Name               string     `json:"name"`
	Email              string     `json:"email,omitempty"`
	Department         string     `json:"department"`
	Skills             []string   `json:"skills,omitempty"`
	Status             string     `json:"status"`
	IsActive           bool       `json:"isActive"`
	IsOnline           bool       `json:"isOnline"`
	LoginTime          *time.Time `json:"loginTime,omitempty"`
	LastStatusChangeAt time.Time  `json:"lastStatusChangeAt"`
}

// AgentStateFrom snapshots a stored agent into its wire shape.
func AgentStateFrom(a *store.Agent) AgentState {
	return AgentState{
		ID:                 a.ID,
		AgentCode:          a.AgentCode,
		Name:               a.Name,
		Email:              a.Email,
		Department:         a.Department,
		Skills:             a.Skills,
		Status:             string(a.Status),
		IsActive:           a.IsActive,
		IsOnline:           a.IsOnline,
		LoginTime:          a.LoginTime,
		LastStatusChangeAt: a.LastStatusChangeAt,
	}
}

// LoginSuccess is sent to the logging-in session alone.
type LoginSuccess struct {
	Agent   AgentState `json:"agent"`
	Message string     `json:"message"`
}

// LoginError reports a failed login to the session that attempted it.
type LoginError struct {
	Message string `json:"message"`
}

// AgentPresence announces an agent going online or offline.
type AgentPresence struct {
	AgentCode string    `json:"agentCode"`
	AgentName string    `json:"agentName"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusChanged announces one accepted status transition.
type StatusChanged struct {
	AgentID        string    `json:"agentId"`
	AgentCode      string    `json:"agentCode"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	Reason         *string   `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// DashboardUpdate is the aggregate snapshot pushed to the dashboard room.
type DashboardUpdate struct {
	TotalAgents     int            `json:"totalAgents"`
	OnlineAgents    int            `json:"onlineAgents"`
	OfflineAgents   int            `json:"offlineAgents"`
	StatusBreakdown map[string]int `json:"statusBreakdown"`
	Timestamp       time.Time      `json:"timestamp"`
}

// NewMessage carries a supervisor message to its audience.
type NewMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
