package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/meta"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// FormActivator runs a form backfill. *meta.Backfiller implements it.
type FormActivator interface {
	ActivateForm(ctx context.Context, orgID uuid.UUID, formID string) (*meta.BackfillResult, error)
}

// MetaFormsHandler exposes the tenant's connected pages, their forms and form activation.
type MetaFormsHandler struct {
	auth      *Authenticator
	meta      store.MetaStore
	graph     *meta.GraphClient
	activator FormActivator
}

func NewMetaFormsHandler(auth *Authenticator, metaStore store.MetaStore, graph *meta.GraphClient, activator FormActivator) *MetaFormsHandler {
	return &MetaFormsHandler{auth: auth, meta: metaStore, graph: graph, activator: activator}
}

// RegisterRoutes registers the Meta integration routes on the given mux.
func (h *MetaFormsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/meta/integration", h.auth.Wrap(h.handleIntegration))
	mux.HandleFunc("GET /v1/meta/pages", h.auth.Wrap(h.handlePages))
	mux.HandleFunc("GET /v1/meta/pages/{pageID}/forms", h.auth.Wrap(h.handleForms))
	mux.HandleFunc("POST /v1/meta/forms/{formID}/activate", h.auth.Wrap(h.handleActivate))
}

func (h *MetaFormsHandler) handleIntegration(w http.ResponseWriter, r *http.Request) {
	integ, err := h.meta.GetIntegration(r.Context(), store.OrgIDFromContext(r.Context()))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	if err != nil {
		slog.Error("meta.integration.get", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": true, "integration": integ})
}

func (h *MetaFormsHandler) handlePages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.meta.ListPages(r.Context(), store.OrgIDFromContext(r.Context()))
	if err != nil {
		slog.Error("meta.pages.list", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]meta.PageSummary, 0, len(pages))
	for _, p := range pages {
		out = append(out, meta.PageSummary{ID: p.PageID, Name: p.Name, Category: p.Category})
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": out})
}

func (h *MetaFormsHandler) handleForms(w http.ResponseWriter, r *http.Request) {
	page, err := h.meta.GetPage(r.Context(), store.OrgIDFromContext(r.Context()), r.PathValue("pageID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		slog.Error("meta.forms.page", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	forms, err := h.graph.ListForms(r.Context(), page.AccessToken, page.PageID)
	if err != nil {
		slog.Warn("meta.forms.list", "page_id", page.PageID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to list forms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": forms})
}

func (h *MetaFormsHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	orgID := store.OrgIDFromContext(r.Context())
	formID := r.PathValue("formID")

	res, err := h.activator.ActivateForm(r.Context(), orgID, formID)
	if errors.Is(err, meta.ErrNotConnected) {
		writeError(w, http.StatusConflict, "meta integration not connected")
		return
	}
	if err != nil {
		slog.Error("meta.backfill.failed", "org_id", orgID, "form_id", formID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
