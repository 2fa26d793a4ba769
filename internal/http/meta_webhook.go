package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/leadclaw/internal/meta"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
	"github.com/nextlevelbuilder/leadclaw/pkg/protocol"
)

// LeadgenImporter imports one real-time lead. *meta.Backfiller implements it.
type LeadgenImporter interface {
	ImportRealtime(ctx context.Context, ch meta.LeadgenChange) (bool, error)
}

// MetaWebhookConfig configures the ads webhook endpoint.
type MetaWebhookConfig struct {
	GlobalVerifyToken string
	AppSecret         string // when set, POSTs must carry a valid X-Hub-Signature-256
	RealtimeLeads     bool
}

// MetaWebhookHandler serves the Meta webhook verification and leadgen events.
type MetaWebhookHandler struct {
	cfg      MetaWebhookConfig
	meta     store.MetaStore
	importer LeadgenImporter // nil disables real-time import
}

func NewMetaWebhookHandler(cfg MetaWebhookConfig, metaStore store.MetaStore, importer LeadgenImporter) *MetaWebhookHandler {
	return &MetaWebhookHandler{cfg: cfg, meta: metaStore, importer: importer}
}

// RegisterRoutes registers the webhook routes on the given mux.
func (h *MetaWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhooks/meta", h.handleVerify)
	mux.HandleFunc("POST /webhooks/meta", h.handleEvent)
}

func (h *MetaWebhookHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, token, challenge := q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge")

	if mode != protocol.HubModeSubscribe || token == "" || !h.tokenMatches(r.Context(), token) {
		slog.Warn("meta.webhook.verify_rejected", "mode", mode, "remote", clientIP(r))
		writeText(w, http.StatusForbidden, "Forbidden")
		return
	}
	slog.Info("meta.webhook.verified")
	writeText(w, http.StatusOK, challenge)
}

func (h *MetaWebhookHandler) tokenMatches(ctx context.Context, token string) bool {
	if g := h.cfg.GlobalVerifyToken; g != "" && subtle.ConstantTimeCompare([]byte(g), []byte(token)) == 1 {
		return true
	}
	ok, err := h.meta.VerifyTokenExists(ctx, token)
	if err != nil {
		slog.Error("meta.webhook.verify_lookup", "error", err)
		return false
	}
	return ok
}

func (h *MetaWebhookHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	if h.cfg.AppSecret != "" && !meta.VerifySignature(h.cfg.AppSecret, body, r.Header.Get(meta.SignatureHeader)) {
		slog.Warn("security.meta_signature_invalid", "remote", clientIP(r))
		writeText(w, http.StatusForbidden, "Forbidden")
		return
	}

	changes, err := meta.ParseLeadgenChanges(body)
	if err != nil {
		slog.Warn("meta.webhook.decode", "error", err)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	for _, ch := range changes {
		slog.Info("meta.webhook.leadgen",
			"leadgen_id", ch.LeadgenID, "page_id", ch.PageID, "form_id", ch.FormID, "ad_id", ch.AdID)
		if !h.cfg.RealtimeLeads || h.importer == nil {
			continue
		}
		created, err := h.importer.ImportRealtime(r.Context(), ch)
		switch {
		case errors.Is(err, meta.ErrUnknownPage):
			slog.Warn("meta.webhook.unknown_page", "page_id", ch.PageID)
		case err != nil:
			slog.Error("meta.webhook.import_failed", "leadgen_id", ch.LeadgenID, "error", err)
		default:
			slog.Info("meta.webhook.imported", "leadgen_id", ch.LeadgenID, "created", created)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
