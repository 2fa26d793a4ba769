package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/leadclaw/internal/channels"
	"github.com/nextlevelbuilder/leadclaw/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/leadclaw/internal/metrics"
	"github.com/nextlevelbuilder/leadclaw/internal/providers"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

var tracer = otel.Tracer("github.com/nextlevelbuilder/leadclaw/internal/agent")

// Outcome statuses of one webhook delivery.
const (
	OutcomeReceived = "received" // acknowledged, nothing to do
	OutcomeSkipped  = "skipped"  // acknowledged, deliberately not answered
	OutcomeSuccess  = "success"  // reply generated (send may still have failed)
	OutcomeNotFound = "not_found"
)

// Skip reasons.
const (
	ReasonNotUpsert  = "not_upsert"
	ReasonFromMe     = "from_me"
	ReasonEmptyText  = "empty_text"
	ReasonMalformed  = "malformed"
	ReasonNoAgent    = "no_agent"
	ReasonTestMode   = "test_mode"
	ReasonEmptyReply = "empty_reply"
)

// Outcome is the result of HandleWebhook, rendered by the HTTP layer.
type Outcome struct {
	Status string
	Reason string
}

// ResponseGenerator produces the reply text. *providers.Registry implements it.
type ResponseGenerator interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (string, error)
}

// MessageSender delivers the reply. *whatsapp.Client implements it.
type MessageSender interface {
	SendText(ctx context.Context, creds store.MessagingConfig, number, text string) error
}

// PipelineDeps wires the inbound message pipeline.
type PipelineDeps struct {
	Organizations store.OrganizationStore
	Agents        store.AgentStore
	Generator     ResponseGenerator
	Sender        MessageSender
	Defaults      Defaults
}

// Pipeline answers inbound WhatsApp messages with the tenant's agent.
// Each delivery runs independently and sequentially; nothing is queued or retried.
type Pipeline struct {
	deps PipelineDeps
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{deps: deps}
}

// HandleWebhook runs: event filter, fromMe filter, empty-text filter, tenant
// resolution, agent selection, test-mode filter, generation, send.
// A returned error means generation (or a store lookup) failed; send failures are
// logged and still reported as success.
func (p *Pipeline) HandleWebhook(ctx context.Context, ev *whatsapp.WebhookEvent) (out Outcome, err error) {
	ctx, span := tracer.Start(ctx, "whatsapp.pipeline")
	defer func() {
		span.SetAttributes(attribute.String("outcome", out.Status), attribute.String("reason", out.Reason))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.ObserveMessage("error", "")
		} else {
			metrics.ObserveMessage(out.Status, out.Reason)
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("instance", ev.Instance), attribute.String("event", ev.Event))

	if !ev.IsUpsert() {
		return Outcome{Status: OutcomeReceived, Reason: ReasonNotUpsert}, nil
	}

	msg, err := whatsapp.ParseUpsert(ev.Data)
	if err != nil {
		slog.Warn("whatsapp.webhook.parse", "instance", ev.Instance, "error", err)
		return Outcome{Status: OutcomeReceived, Reason: ReasonMalformed}, nil
	}
	if msg.FromMe {
		return Outcome{Status: OutcomeReceived, Reason: ReasonFromMe}, nil
	}
	if msg.Text == "" {
		return Outcome{Status: OutcomeReceived, Reason: ReasonEmptyText}, nil
	}

	org, err := p.deps.Organizations.GetByInstanceName(ctx, ev.Instance)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("whatsapp.webhook.unknown_instance", "instance", ev.Instance)
		return Outcome{Status: OutcomeNotFound}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve instance %q: %w", ev.Instance, err)
	}
	span.SetAttributes(attribute.String("org_id", org.ID.String()))

	ag, err := SelectActiveAgent(ctx, p.deps.Agents, org.ID)
	if errors.Is(err, ErrNoAgent) {
		slog.Info("whatsapp.webhook.skipped", "org_id", org.ID, "reason", ReasonNoAgent)
		return Outcome{Status: OutcomeSkipped, Reason: ReasonNoAgent}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("select agent: %w", err)
	}

	cfg := WithDefaults(ag.Config, p.deps.Defaults)
	if !ShouldRespond(cfg, msg.Number) {
		slog.Info("whatsapp.webhook.skipped",
			"org_id", org.ID, "agent_id", ag.ID, "reason", ReasonTestMode, "sender", msg.Number)
		return Outcome{Status: OutcomeSkipped, Reason: ReasonTestMode}, nil
	}

	slog.Debug("whatsapp.webhook.generate",
		"org_id", org.ID, "agent_id", ag.ID, "provider", cfg.Provider, "model", cfg.Model,
		"preview", channels.Truncate(msg.Text, 50))

	start := time.Now()
	reply, err := p.deps.Generator.Generate(ctx, providers.GenerateRequest{
		Provider:     cfg.Provider,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		Messages:     []providers.Message{{Role: providers.RoleUser, Content: msg.Text}},
	})
	metrics.ObserveGeneration(cfg.Provider, start, err)
	if err != nil {
		return Outcome{}, fmt.Errorf("generate reply (agent %s): %w", ag.ID, err)
	}
	if cfg.FormatReplies {
		reply = SanitizeReply(reply)
	}
	if strings.TrimSpace(reply) == "" {
		slog.Warn("whatsapp.webhook.empty_reply", "org_id", org.ID, "agent_id", ag.ID)
		return Outcome{Status: OutcomeSkipped, Reason: ReasonEmptyReply}, nil
	}

	if err := p.deps.Sender.SendText(ctx, org.Messaging, msg.Number, reply); err != nil {
		// Send failures never fail the webhook.
		slog.Error("whatsapp.send_failed", "org_id", org.ID, "to", msg.Number, "error", err)
		span.AddEvent("send_failed")
	} else {
		slog.Info("whatsapp.reply_sent", "org_id", org.ID, "agent_id", ag.ID, "to", msg.Number)
	}
	return Outcome{Status: OutcomeSuccess}, nil
}
