package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/leadclaw/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// GatewayClient is the instance-management side of the messaging gateway.
// *whatsapp.Client implements it.
type GatewayClient interface {
	InstanceStatus(ctx context.Context, creds store.MessagingConfig) (string, error)
	CreateInstance(ctx context.Context, creds store.MessagingConfig) (*whatsapp.ConnectInfo, error)
	Connect(ctx context.Context, creds store.MessagingConfig) (*whatsapp.ConnectInfo, error)
	Logout(ctx context.Context, creds store.MessagingConfig) error
	SetWebhook(ctx context.Context, creds store.MessagingConfig, webhookURL string) error
}

// WhatsAppInstancesHandler manages the tenant's messaging gateway instance.
type WhatsAppInstancesHandler struct {
	auth       *Authenticator
	orgs       store.OrganizationStore
	gateway    GatewayClient
	webhookURL string // public URL of /webhooks/whatsapp; empty skips webhook registration
}

func NewWhatsAppInstancesHandler(auth *Authenticator, orgs store.OrganizationStore, gateway GatewayClient, webhookURL string) *WhatsAppInstancesHandler {
	return &WhatsAppInstancesHandler{auth: auth, orgs: orgs, gateway: gateway, webhookURL: webhookURL}
}

// RegisterRoutes registers all instance routes on the given mux.
func (h *WhatsAppInstancesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/whatsapp/status", h.auth.Wrap(h.handleStatus))
	mux.HandleFunc("GET /v1/whatsapp/settings", h.auth.Wrap(h.handleGetSettings))
	mux.HandleFunc("PUT /v1/whatsapp/settings", h.auth.Wrap(h.handleUpdateSettings))
	mux.HandleFunc("POST /v1/whatsapp/instance", h.auth.Wrap(h.handleCreateInstance))
	mux.HandleFunc("GET /v1/whatsapp/connect", h.auth.Wrap(h.handleConnect))
	mux.HandleFunc("POST /v1/whatsapp/logout", h.auth.Wrap(h.handleLogout))
}

func (h *WhatsAppInstancesHandler) loadOrg(w http.ResponseWriter, r *http.Request) (*store.OrganizationData, bool) {
	org, err := h.orgs.GetByID(r.Context(), store.OrgIDFromContext(r.Context()))
	if err != nil {
		slog.Error("whatsapp.org_load", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return org, true
}

// handleStatus polls the gateway and writes the observed status back when it changed.
func (h *WhatsAppInstancesHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	org, ok := h.loadOrg(w, r)
	if !ok {
		return
	}
	status := store.InstanceDisconnected
	if org.Messaging.Complete() {
		var err error
		status, err = h.gateway.InstanceStatus(r.Context(), org.Messaging)
		if err != nil {
			slog.Warn("whatsapp.status_poll", "org_id", org.ID, "error", err)
			status = store.InstanceError
		}
	}
	h.writeBackStatus(r.Context(), org, status)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// writeBackStatus stores status when it differs from the stored one. Failures are logged only.
func (h *WhatsAppInstancesHandler) writeBackStatus(ctx context.Context, org *store.OrganizationData, status string) {
	if status == org.InstanceStatus {
		return
	}
	if err := h.orgs.UpdateInstanceStatus(ctx, org.ID, status); err != nil {
		slog.Warn("whatsapp.status_writeback", "org_id", org.ID, "error", err)
		return
	}
	slog.Info("whatsapp.status_changed", "org_id", org.ID, "from", org.InstanceStatus, "to", status)
}

type messagingSettings struct {
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
	InstanceName string `json:"instance_name"`
}

func (h *WhatsAppInstancesHandler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	org, ok := h.loadOrg(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"base_url":      org.Messaging.BaseURL,
		"instance_name": org.Messaging.InstanceName,
		"has_api_key":   org.Messaging.APIKey != "",
		"status":        org.MessagingStatus(),
	})
}

// handleUpdateSettings replaces the credential triple. All three fields are
// written together; an all-empty body clears the integration.
func (h *WhatsAppInstancesHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req messagingSettings
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := store.MessagingConfig{
		BaseURL:      strings.TrimSpace(req.BaseURL),
		APIKey:       strings.TrimSpace(req.APIKey),
		InstanceName: strings.TrimSpace(req.InstanceName),
	}
	cleared := cfg == store.MessagingConfig{}
	if !cleared && !cfg.Complete() {
		writeError(w, http.StatusBadRequest, "base_url, api_key and instance_name are required together")
		return
	}

	orgID := store.OrgIDFromContext(r.Context())
	err := h.orgs.UpdateMessaging(r.Context(), orgID, cfg)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "instance name already in use")
		return
	}
	if err != nil {
		slog.Error("whatsapp.settings_update", "org_id", orgID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("whatsapp.settings_updated", "org_id", orgID, "instance", cfg.InstanceName)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *WhatsAppInstancesHandler) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireConfigured(w, r)
	if !ok {
		return
	}
	info, err := h.gateway.CreateInstance(r.Context(), org.Messaging)
	if err != nil {
		h.gatewayError(w, org, "create_instance", err)
		return
	}
	if h.webhookURL != "" {
		if err := h.gateway.SetWebhook(r.Context(), org.Messaging, h.webhookURL); err != nil {
			slog.Warn("whatsapp.set_webhook", "org_id", org.ID, "error", err)
		}
	}
	if err := h.orgs.UpdateInstanceStatus(r.Context(), org.ID, store.InstanceConnecting); err != nil {
		slog.Warn("whatsapp.status_writeback", "org_id", org.ID, "error", err)
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *WhatsAppInstancesHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireConfigured(w, r)
	if !ok {
		return
	}
	info, err := h.gateway.Connect(r.Context(), org.Messaging)
	if err != nil {
		h.gatewayError(w, org, "connect", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *WhatsAppInstancesHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	org, ok := h.requireConfigured(w, r)
	if !ok {
		return
	}
	if err := h.gateway.Logout(r.Context(), org.Messaging); err != nil {
		h.gatewayError(w, org, "logout", err)
		return
	}
	if err := h.orgs.UpdateInstanceStatus(r.Context(), org.ID, store.InstanceDisconnected); err != nil {
		slog.Warn("whatsapp.status_writeback", "org_id", org.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": store.InstanceDisconnected})
}

func (h *WhatsAppInstancesHandler) requireConfigured(w http.ResponseWriter, r *http.Request) (*store.OrganizationData, bool) {
	org, ok := h.loadOrg(w, r)
	if !ok {
		return nil, false
	}
	if !org.Messaging.Complete() {
		writeError(w, http.StatusBadRequest, "messaging gateway is not configured")
		return nil, false
	}
	return org, true
}

func (h *WhatsAppInstancesHandler) gatewayError(w http.ResponseWriter, org *store.OrganizationData, op string, err error) {
	slog.Warn("whatsapp.gateway_error", "org_id", org.ID, "op", op, "error", err)
	writeError(w, http.StatusBadGateway, "messaging gateway request failed")
}
