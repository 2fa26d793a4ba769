package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/leadclaw/internal/agent"
	"github.com/nextlevelbuilder/leadclaw/internal/channels"
	"github.com/nextlevelbuilder/leadclaw/internal/channels/whatsapp"
)

// WebhookProcessor handles one gateway delivery. *agent.Pipeline implements it.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, ev *whatsapp.WebhookEvent) (agent.Outcome, error)
}

// WhatsAppWebhookHandler receives messaging gateway webhooks.
type WhatsAppWebhookHandler struct {
	pipeline WebhookProcessor
	limiter  *channels.WebhookRateLimiter
}

func NewWhatsAppWebhookHandler(pipeline WebhookProcessor, limiter *channels.WebhookRateLimiter) *WhatsAppWebhookHandler {
	return &WhatsAppWebhookHandler{pipeline: pipeline, limiter: limiter}
}

// RegisterRoutes registers the webhook routes. The {event} form serves gateways
// configured with per-event webhook URLs.
func (h *WhatsAppWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/whatsapp", h.handleWebhook)
	mux.HandleFunc("POST /webhooks/whatsapp/{event}", h.handleWebhook)
}

func (h *WhatsAppWebhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var ev whatsapp.WebhookEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		slog.Warn("whatsapp.webhook.decode", "remote", clientIP(r), "error", err)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if ev.Event == "" {
		ev.Event = r.PathValue("event")
	}

	key := ev.Instance
	if key == "" {
		key = clientIP(r)
	}
	if !h.limiter.Allow(key) {
		slog.Warn("security.rate_limited", "path", r.URL.Path, "key", key)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	out, err := h.pipeline.HandleWebhook(r.Context(), &ev)
	if err != nil {
		slog.Error("whatsapp.webhook.failed", "instance", ev.Instance, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch out.Status {
	case agent.OutcomeNotFound:
		writeError(w, http.StatusNotFound, "instance not found")
	case agent.OutcomeSkipped:
		writeJSON(w, http.StatusOK, map[string]any{"skipped": true, "reason": out.Reason})
	case agent.OutcomeSuccess:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
