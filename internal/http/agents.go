package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// AgentsHandler handles agent CRUD endpoints.
type AgentsHandler struct {
	auth   *Authenticator
	agents store.AgentStore
}

// NewAgentsHandler creates a handler for agent management endpoints.
func NewAgentsHandler(auth *Authenticator, agents store.AgentStore) *AgentsHandler {
	return &AgentsHandler{auth: auth, agents: agents}
}

// RegisterRoutes registers all agent management routes on the given mux.
func (h *AgentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/agents", h.auth.Wrap(h.handleList))
	mux.HandleFunc("POST /v1/agents", h.auth.Wrap(h.handleCreate))
	mux.HandleFunc("GET /v1/agents/{id}", h.auth.Wrap(h.handleGet))
	mux.HandleFunc("PUT /v1/agents/{id}", h.auth.Wrap(h.handleUpdate))
	mux.HandleFunc("DELETE /v1/agents/{id}", h.auth.Wrap(h.handleDelete))
}

type agentRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Status      string            `json:"status"`
	IsDefault   bool              `json:"is_default"`
	Config      store.AgentConfig `json:"config"`
}

// validate normalizes the request and returns a client-facing message on failure.
func (req *agentRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Config.Provider == "" {
		req.Config.Provider = store.ProviderGoogle
	}
	if !store.IsValidProvider(req.Config.Provider) {
		return "provider must be one of: google, openai, anthropic"
	}
	switch req.Status {
	case "":
		req.Status = store.AgentStatusActive
	case store.AgentStatusActive, store.AgentStatusInactive:
	default:
		return "status must be active or inactive"
	}
	if t := req.Config.Temperature; t != nil && (*t < 0 || *t > 2) {
		return "temperature must be between 0 and 2"
	}
	if req.Config.TestMode && strings.TrimSpace(req.Config.TestNumber) == "" {
		return "testNumber is required when testMode is on"
	}
	return ""
}

func (h *AgentsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context(), store.OrgIDFromContext(r.Context()))
	if err != nil {
		slog.Error("agents.list", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if agents == nil {
		agents = []store.AgentData{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": agents})
}

func (h *AgentsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ag := &store.AgentData{
		OrgID:       store.OrgIDFromContext(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		IsDefault:   req.IsDefault,
		Config:      req.Config,
	}
	if err := h.agents.Create(r.Context(), ag); err != nil {
		slog.Error("agents.create", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("agents.created", "org_id", ag.OrgID, "agent_id", ag.ID, "provider", ag.Config.Provider)
	writeJSON(w, http.StatusCreated, ag)
}

func (h *AgentsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent ID")
		return
	}
	ag, err := h.agents.Get(r.Context(), store.OrgIDFromContext(r.Context()), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		slog.Error("agents.get", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ag)
}

func (h *AgentsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent ID")
		return
	}
	var req agentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ag := &store.AgentData{
		BaseModel:   store.BaseModel{ID: id},
		OrgID:       store.OrgIDFromContext(r.Context()),
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		IsDefault:   req.IsDefault,
		Config:      req.Config,
	}
	err := h.agents.Update(r.Context(), ag)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		slog.Error("agents.update", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ag)
}

func (h *AgentsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent ID")
		return
	}
	err := h.agents.Delete(r.Context(), store.OrgIDFromContext(r.Context()), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		slog.Error("agents.delete", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}
