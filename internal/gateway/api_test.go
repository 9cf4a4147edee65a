// ABOUTME: Tests for the HTTP API handlers
// ABOUTME: Verifies agent CRUD, status transitions, messages, and health endpoints

package gateway

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallboard/wallboard/internal/config"
	"github.com/wallboard/wallboard/internal/status"
	"github.com/wallboard/wallboard/internal/store"
)

func newTestGateway(t *testing.T) (*Gateway, *store.MockStore) {
	t.Helper()
	mock := store.NewMockStore()
	g := newWithStore(config.Default(), mock, slog.Default())
	return g, mock
}

func seedAgent(t *testing.T, s *store.MockStore, code string, st status.Status) *store.Agent {
	t.Helper()
	now := time.Now().UTC()
	agent := &store.Agent{
		ID:                 "id-" + code,
		AgentCode:          code,
		Name:               "Agent " + code,
		Email:              code + "@example.com",
		Department:         "Support",
		Status:             st,
		IsActive:           true,
		LastStatusChangeAt: now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, s.CreateAgent(t.Context(), agent))
	return agent
}

func doJSON(g *Gateway, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	g.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeAgent(t *testing.T, rec *httptest.ResponseRecorder) AgentResponse {
	t.Helper()
	var resp AgentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp["error"]
}

func TestCreateAgent(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(g, http.MethodPost, "/api/agents", CreateAgentRequest{
		AgentCode:  "A001",
		Name:       "Alice",
		Email:      "alice@example.com",
		Department: "Sales",
		Skills:     []string{"english", "billing"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeAgent(t, rec)
	assert.Equal(t, "A001", resp.AgentCode)
	assert.Equal(t, string(status.Offline), resp.Status, "new agents start Offline")
	assert.True(t, resp.IsActive)
	assert.NotEmpty(t, resp.ID)
}

func TestCreateAgent_Validation(t *testing.T) {
	g, _ := newTestGateway(t)

	tests := []struct {
		name string
		req  CreateAgentRequest
	}{
		{"bad code format", CreateAgentRequest{AgentCode: "a1", Name: "X", Department: "Sales"}},
		{"missing name", CreateAgentRequest{AgentCode: "A001", Department: "Sales"}},
		{"unknown department", CreateAgentRequest{AgentCode: "A001", Name: "X", Department: "Engineering"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(g, http.MethodPost, "/api/agents", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateAgent_DuplicateCode(t *testing.T) {
	g, mock := newTestGateway(t)
	seedAgent(t, mock, "A001", status.Offline)

	rec := doJSON(g, http.MethodPost, "/api/agents", CreateAgentRequest{
		AgentCode: "A001", Name: "Imposter", Department: "Sales",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeError(t, rec), "A001")
}

func TestListAgents_Filters(t *testing.T) {
	g, mock := newTestGateway(t)
	seedAgent(t, mock, "A001", status.Available)
	a2 := seedAgent(t, mock, "A002", status.Offline)
	a2.Department = "Sales"
	require.NoError(t, mock.UpdateAgent(t.Context(), a2))

	rec := doJSON(g, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []AgentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all, 2)

	rec = doJSON(g, http.MethodGet, "/api/agents?department=Sales", nil)
	var filtered []AgentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "A002", filtered[0].AgentCode)

	rec = doJSON(g, http.MethodGet, "/api/agents?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAgent(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Available)

	rec := doJSON(g, http.MethodGet, "/api/agents/"+agent.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A001", decodeAgent(t, rec).AgentCode)

	rec = doJSON(g, http.MethodGet, "/api/agents/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAgent(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Busy)

	name := "Alice Renamed"
	dept := "Technical"
	rec := doJSON(g, http.MethodPut, "/api/agents/"+agent.ID, UpdateAgentRequest{
		Name: &name, Department: &dept,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAgent(t, rec)
	assert.Equal(t, "Alice Renamed", resp.Name)
	assert.Equal(t, "Technical", resp.Department)
	// Status is not touched by profile updates.
	assert.Equal(t, string(status.Busy), resp.Status)
}

func TestUpdateAgent_RejectsBadDepartment(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Available)

	dept := "Engineering"
	rec := doJSON(g, http.MethodPut, "/api/agents/"+agent.ID, UpdateAgentRequest{Department: &dept})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAgent(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Available)

	rec := doJSON(g, http.MethodDelete, "/api/agents/"+agent.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := mock.GetAgent(t.Context(), agent.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec = doJSON(g, http.MethodDelete, "/api/agents/"+agent.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAgent_ClosesLiveSession(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Available)

	s := g.sessions.NewSession(nil)
	g.sessions.Login(t.Context(), s, "A001", "Alice")
	require.Equal(t, 1, g.registry.Len())

	rec := doJSON(g, http.MethodDelete, "/api/agents/"+agent.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Deleting the record tears the session all the way down, not just its
	// registry entry.
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("deleted agent's session transport was not closed")
	}
	assert.Equal(t, 0, g.sessions.SessionCount())
	assert.Equal(t, 0, g.registry.Len())
}

func TestUpdateStatus(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Available)

	rec := doJSON(g, http.MethodPatch, "/api/agents/"+agent.ID+"/status", UpdateStatusRequest{
		Status: "Busy",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Busy", decodeAgent(t, rec).Status)

	history, err := mock.StatusHistory(t.Context(), agent.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, status.Available, history[0].From)
	assert.Equal(t, status.Busy, history[0].To)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Break)

	// Break -> Busy is not in the transition table.
	rec := doJSON(g, http.MethodPatch, "/api/agents/"+agent.ID+"/status", UpdateStatusRequest{
		Status: "Busy",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "Break")

	stored, err := mock.GetAgent(t.Context(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Break, stored.Status, "rejected transition must not mutate")
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Available)

	rec := doJSON(g, http.MethodPatch, "/api/agents/"+agent.ID+"/status", UpdateStatusRequest{
		Status: "Lunch",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatus_UnknownAgent(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(g, http.MethodPatch, "/api/agents/nope/status", UpdateStatusRequest{
		Status: "Busy",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentHistory(t *testing.T) {
	g, mock := newTestGateway(t)
	agent := seedAgent(t, mock, "A001", status.Available)

	doJSON(g, http.MethodPatch, "/api/agents/"+agent.ID+"/status", UpdateStatusRequest{Status: "Busy"})
	doJSON(g, http.MethodPatch, "/api/agents/"+agent.ID+"/status", UpdateStatusRequest{Status: "Wrap"})

	rec := doJSON(g, http.MethodGet, "/api/agents/"+agent.ID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []StatusHistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	require.Len(t, history, 2)
	assert.Equal(t, "Available", history[0].FromStatus)
	assert.Equal(t, "Busy", history[0].ToStatus)
	assert.Equal(t, "Wrap", history[1].ToStatus)
}

func TestSendMessage(t *testing.T) {
	g, mock := newTestGateway(t)
	seedAgent(t, mock, "A001", status.Available)

	rec := doJSON(g, http.MethodPost, "/api/messages", SendMessageRequest{
		From: "SUP01", To: "A001", Message: "call back customer 4411",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "call back customer 4411", resp.Message)
}

func TestSendMessage_UnknownTarget(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(g, http.MethodPost, "/api/messages", SendMessageRequest{
		From: "SUP01", To: "Z999", Message: "hello",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessage_AllDoesNotRequireAgent(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(g, http.MethodPost, "/api/messages", SendMessageRequest{
		From: "SUP01", To: store.MessageTargetAll, Message: "team meeting at 3",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMessagesForAgent_IncludesBroadcasts(t *testing.T) {
	g, mock := newTestGateway(t)
	seedAgent(t, mock, "A001", status.Available)
	seedAgent(t, mock, "A002", status.Available)

	doJSON(g, http.MethodPost, "/api/messages", SendMessageRequest{From: "SUP01", To: "A001", Message: "direct"})
	doJSON(g, http.MethodPost, "/api/messages", SendMessageRequest{From: "SUP01", To: "ALL", Message: "broadcast"})
	doJSON(g, http.MethodPost, "/api/messages", SendMessageRequest{From: "SUP01", To: "A002", Message: "other"})

	rec := doJSON(g, http.MethodGet, "/api/messages/A001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp, 2)
}

func TestDeleteMessage(t *testing.T) {
	g, mock := newTestGateway(t)
	seedAgent(t, mock, "A001", status.Available)

	rec := doJSON(g, http.MethodPost, "/api/messages", SendMessageRequest{
		From: "SUP01", To: "A001", Message: "obsolete",
	})
	var msg MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))

	rec = doJSON(g, http.MethodDelete, "/api/messages/"+msg.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(g, http.MethodDelete, "/api/messages/"+msg.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(g, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)
}

func TestMethodNotAllowed(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(g, http.MethodPut, "/api/agents", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(g, http.MethodPatch, "/api/messages", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
