package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// LeadsHandler handles lead and stage endpoints.
type LeadsHandler struct {
	auth  *Authenticator
	leads store.LeadStore
}

func NewLeadsHandler(auth *Authenticator, leads store.LeadStore) *LeadsHandler {
	return &LeadsHandler{auth: auth, leads: leads}
}

// RegisterRoutes registers all lead routes on the given mux.
func (h *LeadsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/leads", h.auth.Wrap(h.handleList))
	mux.HandleFunc("POST /v1/leads", h.auth.Wrap(h.handleCreate))
	mux.HandleFunc("PUT /v1/leads/{id}/stage", h.auth.Wrap(h.handleMoveStage))
	mux.HandleFunc("GET /v1/stages", h.auth.Wrap(h.handleListStages))
	mux.HandleFunc("POST /v1/stages", h.auth.Wrap(h.handleCreateStage))
}

func (h *LeadsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.LeadListOpts{Source: q.Get("source")}
	if v := q.Get("stage_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid stage_id")
			return
		}
		opts.StageID = &id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	leads, err := h.leads.List(r.Context(), store.OrgIDFromContext(r.Context()), opts)
	if err != nil {
		slog.Error("leads.list", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if leads == nil {
		leads = []store.LeadData{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leads": leads})
}

type leadRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	StageID  *uuid.UUID     `json:"stage_id"`
	Metadata map[string]any `json:"metadata"`
}

func (h *LeadsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	lead := &store.LeadData{
		OrgID:    store.OrgIDFromContext(r.Context()),
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Source:   store.LeadSourceManual,
		Status:   store.LeadStatusNew,
		Metadata: req.Metadata,
	}
	if err := h.leads.Create(r.Context(), lead); err != nil {
		slog.Error("leads.create", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if req.StageID != nil {
		if err := h.leads.MoveStage(r.Context(), lead.OrgID, lead.ID, req.StageID); err != nil {
			slog.Warn("leads.create_stage", "lead_id", lead.ID, "error", err)
		} else {
			lead.StageID = req.StageID
		}
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (h *LeadsHandler) handleMoveStage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead ID")
		return
	}
	var req struct {
		StageID *uuid.UUID `json:"stage_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.leads.MoveStage(r.Context(), store.OrgIDFromContext(r.Context()), id, req.StageID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "lead or stage not found")
		return
	}
	if err != nil {
		slog.Error("leads.move_stage", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

func (h *LeadsHandler) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.leads.ListStages(r.Context(), store.OrgIDFromContext(r.Context()))
	if err != nil {
		slog.Error("stages.list", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stages == nil {
		stages = []store.StageData{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stages": stages})
}

func (h *LeadsHandler) handleCreateStage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Position int    `json:"position"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	stage := &store.StageData{
		OrgID:    store.OrgIDFromContext(r.Context()),
		Name:     strings.TrimSpace(req.Name),
		Position: req.Position,
	}
	if err := h.leads.CreateStage(r.Context(), stage); err != nil {
		slog.Error("stages.create", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, stage)
}
