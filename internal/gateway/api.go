// ABOUTME: HTTP API handlers for agent management, status transitions, and messages
// ABOUTME: Provides the /api/agents, /api/messages, and /health endpoints

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wallboard/wallboard/internal/broadcast"
	"github.com/wallboard/wallboard/internal/engine"
	"github.com/wallboard/wallboard/internal/status"
	"github.com/wallboard/wallboard/internal/store"
)

// agentCodePattern is the wire format for agent codes: one uppercase letter
// followed by three digits, e.g. A001.
var agentCodePattern = regexp.MustCompile(`^[A-Z]\d{3}$`)

// AgentResponse is the JSON shape of one agent in API responses.
type AgentResponse struct {
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
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// CreateAgentRequest is the JSON request body for POST /api/agents.
type CreateAgentRequest struct {
	AgentCode  string   `json:"agentCode"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Department string   `json:"department"`
	Skills     []string `json:"skills"`
}

// UpdateAgentRequest is the JSON request body for PUT /api/agents/{id}.
// Agent code and status are immutable through this endpoint.
type UpdateAgentRequest struct {
	Name       *string  `json:"name"`
	Email      *string  `json:"email"`
	Department *string  `json:"department"`
	Skills     []string `json:"skills"`
	IsActive   *bool    `json:"isActive"`
}

// UpdateStatusRequest is the JSON request body for PATCH /api/agents/{id}/status.
type UpdateStatusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

// StatusHistoryResponse is the JSON shape of one audit record.
type StatusHistoryResponse struct {
	ID         string  `json:"id"`
	AgentID    string  `json:"agentId"`
	FromStatus string  `json:"fromStatus"`
	ToStatus   string  `json:"toStatus"`
	Reason     *string `json:"reason,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// MessageResponse is the JSON shape of one supervisor message.
type MessageResponse struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SendMessageRequest is the JSON request body for POST /api/messages.
type SendMessageRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	LiveSessions  int    `json:"liveSessions"`
	OnlineAgents  int    `json:"onlineAgents"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

var startTime = time.Now()

func agentToResponse(a *store.Agent) AgentResponse {
	return AgentResponse{
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
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func messageToResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		From:      m.From,
		To:        m.To,
		Message:   m.Content,
		Timestamp: m.CreatedAt.Format(time.RFC3339),
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error("encoding response failed", "error", err)
	}
}

// handleHealth reports liveness, store reachability, and session counts.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Database:      "ok",
		LiveSessions:  g.sessions.SessionCount(),
		OnlineAgents:  g.registry.Len(),
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
	}

	code := http.StatusOK
	if err := g.store.Ping(r.Context()); err != nil {
		g.logger.Error("health check: store unreachable", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		code = http.StatusServiceUnavailable
	}
	g.sendJSON(w, code, resp)
}

// handleAgents handles GET and POST /api/agents.
func (g *Gateway) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.listAgents(w, r)
	case http.MethodPost:
		g.createAgent(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// listAgents returns all agents, optionally filtered by ?department=X,
// ?status=X, and ?online=true|false.
func (g *Gateway) listAgents(w http.ResponseWriter, r *http.Request) {
	var filter store.AgentFilter

	if dept := r.URL.Query().Get("department"); dept != "" {
		filter.Department = &dept
	}
	if st := r.URL.Query().Get("status"); st != "" {
		parsed := status.Status(st)
		if !status.Valid(parsed) {
			g.sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", st))
			return
		}
		filter.Status = &parsed
	}
	if online := r.URL.Query().Get("online"); online != "" {
		val := online == "true"
		filter.IsOnline = &val
	}

	agents, err := g.store.ListAgents(r.Context(), filter)
	if err != nil {
		g.logger.Error("listing agents failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		resp = append(resp, agentToResponse(a))
	}
	g.sendJSON(w, http.StatusOK, resp)
}

func validateAgentFields(code, name, department string) error {
	if !agentCodePattern.MatchString(code) {
		return fmt.Errorf("agentCode must match %s", agentCodePattern.String())
	}
	if name == "" {
		return errors.New("name is required")
	}
	if !slices.Contains(store.Departments, department) {
		return fmt.Errorf("department must be one of %s", strings.Join(store.Departments, ", "))
	}
	return nil
}

func (g *Gateway) createAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validateAgentFields(req.AgentCode, req.Name, req.Department); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	agent := &store.Agent{
		ID:                 uuid.New().String(),
		AgentCode:          req.AgentCode,
		Name:               req.Name,
		Email:              req.Email,
		Department:         req.Department,
		Skills:             req.Skills,
		Status:             status.Offline,
		IsActive:           true,
		LastStatusChangeAt: now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := g.store.CreateAgent(r.Context(), agent); err != nil {
		if errors.Is(err, store.ErrDuplicateAgent) {
			g.sendJSONError(w, http.StatusConflict, fmt.Sprintf("agent %s already exists", req.AgentCode))
			return
		}
		g.logger.Error("creating agent failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("agent created", "agent_code", agent.AgentCode, "agent_id", agent.ID)
	g.sendJSON(w, http.StatusCreated, agentToResponse(agent))
}

// handleAgentSubroutes dispatches /api/agents/{id}, /api/agents/{id}/status,
// and /api/agents/{id}/history.
func (g *Gateway) handleAgentSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	if rest == "" {
		g.sendJSONError(w, http.StatusBadRequest, "agent id is required")
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	switch sub {
	case "":
		g.handleAgentByID(w, r, id)
	case "status":
		g.handleAgentStatus(w, r, id)
	case "history":
		g.handleAgentHistory(w, r, id)
	default:
		g.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

func (g *Gateway) handleAgentByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		agent, err := g.store.GetAgent(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "agent not found")
			return
		}
		if err != nil {
			g.logger.Error("loading agent failed", "agent_id", id, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		g.sendJSON(w, http.StatusOK, agentToResponse(agent))

	case http.MethodPut:
		g.updateAgent(w, r, id)

	case http.MethodDelete:
		g.deleteAgent(w, r, id)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) updateAgent(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	agent, err := g.store.GetAgent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		g.logger.Error("loading agent failed", "agent_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.Name != nil {
		agent.Name = *req.Name
	}
	if req.Email != nil {
		agent.Email = *req.Email
	}
	if req.Department != nil {
		agent.Department = *req.Department
	}
	if req.Skills != nil {
		agent.Skills = req.Skills
	}
	if req.IsActive != nil {
		agent.IsActive = *req.IsActive
	}

	if err := validateAgentFields(agent.AgentCode, agent.Name, agent.Department); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	agent.UpdatedAt = time.Now().UTC()
	if err := g.store.UpdateAgent(r.Context(), agent); err != nil {
		g.logger.Error("updating agent failed", "agent_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, agentToResponse(agent))
}

func (g *Gateway) deleteAgent(w http.ResponseWriter, r *http.Request, id string) {
	agent, err := g.store.DeleteAgent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		g.logger.Error("deleting agent failed", "agent_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// A deleted agent with a live session gets that session fully torn
	// down, transport included, through the manager's single teardown path.
	if g.sessions.DisconnectAgent(r.Context(), agent.AgentCode) {
		g.logger.Info("closed session for deleted agent", "agent_code", agent.AgentCode)
	}

	g.logger.Info("agent deleted", "agent_code", agent.AgentCode, "agent_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleAgentStatus handles PATCH /api/agents/{id}/status: a supervisor-driven
// status transition going through the same engine as agent-driven ones.
func (g *Gateway) handleAgentStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	agent, event, err := g.engine.RequestTransitionByID(r.Context(), id, status.Status(req.Status), req.Reason)
	if err != nil {
		var invalidErr *engine.InvalidStatusError
		var illegalErr *engine.IllegalTransitionError
		switch {
		case errors.Is(err, engine.ErrAgentNotFound):
			g.sendJSONError(w, http.StatusNotFound, "agent not found")
		case errors.As(err, &invalidErr):
			g.sendJSONError(w, http.StatusBadRequest, invalidErr.Error())
		case errors.As(err, &illegalErr):
			g.sendJSONError(w, http.StatusBadRequest, illegalErr.Error())
		default:
			g.logger.Error("status transition failed", "agent_id", id, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	g.publishStatusChange(r.Context(), event)
	g.sendJSON(w, http.StatusOK, agentToResponse(agent))
}

// publishStatusChange fans an accepted transition out to the agent's room and
// refreshes the dashboard.
func (g *Gateway) publishStatusChange(ctx context.Context, event *engine.StatusChanged) {
	g.broadcaster.Publish(broadcast.AgentRoom(event.AgentCode), broadcast.Event{
		Event: broadcast.EventStatusChanged,
		Data: broadcast.StatusChanged{
			AgentID:        event.AgentID,
			AgentCode:      event.AgentCode,
			PreviousStatus: string(event.PreviousStatus),
			NewStatus:      string(event.NewStatus),
			Reason:         event.Reason,
			Timestamp:      event.At,
		},
	})
	g.sessions.BroadcastDashboard(ctx)
}

func (g *Gateway) handleAgentHistory(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if _, err := g.store.GetAgent(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	} else if err != nil {
		g.logger.Error("loading agent failed", "agent_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	history, err := g.store.StatusHistory(r.Context(), id)
	if err != nil {
		g.logger.Error("loading status history failed", "agent_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]StatusHistoryResponse, 0, len(history))
	for _, entry := range history {
		resp = append(resp, StatusHistoryResponse{
			ID:         entry.ID,
			AgentID:    entry.AgentID,
			FromStatus: string(entry.From),
			ToStatus:   string(entry.To),
			Reason:     entry.Reason,
			Timestamp:  entry.At.Format(time.RFC3339),
		})
	}
	g.sendJSON(w, http.StatusOK, resp)
}

// handleMessages handles GET and POST /api/messages.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		messages, err := g.store.ListMessages(r.Context())
		if err != nil {
			g.logger.Error("listing messages failed", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp := make([]MessageResponse, 0, len(messages))
		for _, m := range messages {
			resp = append(resp, messageToResponse(m))
		}
		g.sendJSON(w, http.StatusOK, resp)

	case http.MethodPost:
		g.sendMessage(w, r)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// sendMessage persists and delivers a supervisor message through the same
// path websocket clients use, so connected agents see it in real time.
func (g *Gateway) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.From == "" || req.To == "" || req.Message == "" {
		g.sendJSONError(w, http.StatusBadRequest, "from, to, and message are required")
		return
	}

	if req.To != store.MessageTargetAll {
		if _, err := g.store.GetAgentByCode(r.Context(), req.To); errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, fmt.Sprintf("agent %s not found", req.To))
			return
		} else if err != nil {
			g.logger.Error("loading message target failed", "agent_code", req.To, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	msg, err := g.sessions.DeliverMessage(r.Context(), req.From, req.To, req.Message)
	if err != nil {
		g.logger.Error("delivering message failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusCreated, messageToResponse(msg))
}

// handleMessageSubroutes dispatches GET /api/messages/{agentCode} and
// DELETE /api/messages/{id}.
func (g *Gateway) handleMessageSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	if rest == "" || strings.Contains(rest, "/") {
		g.sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		// Messages addressed to the agent, including ALL broadcasts.
		messages, err := g.store.MessagesForAgent(r.Context(), rest)
		if err != nil {
			g.logger.Error("listing agent messages failed", "agent_code", rest, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp := make([]MessageResponse, 0, len(messages))
		for _, m := range messages {
			resp = append(resp, messageToResponse(m))
		}
		g.sendJSON(w, http.StatusOK, resp)

	case http.MethodDelete:
		err := g.store.DeleteMessage(r.Context(), rest)
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "message not found")
			return
		}
		if err != nil {
			g.logger.Error("deleting message failed", "message_id", rest, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
