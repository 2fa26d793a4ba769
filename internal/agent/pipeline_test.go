package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nextlevelbuilder/leadclaw/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/leadclaw/internal/providers"
	"github.com/nextlevelbuilder/leadclaw/internal/store"
	"github.com/nextlevelbuilder/leadclaw/internal/store/file"
)

type fakeGenerator struct {
	calls []providers.GenerateRequest
	reply string
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, req providers.GenerateRequest) (string, error) {
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

type sentText struct {
	creds  store.MessagingConfig
	number string
	text   string
}

type fakeSender struct {
	sent []sentText
	err  error
}

func (f *fakeSender) SendText(_ context.Context, creds store.MessagingConfig, number, text string) error {
	f.sent = append(f.sent, sentText{creds, number, text})
	return f.err
}

// countingOrgs records tenant lookups so tests can assert zero store access.
type countingOrgs struct {
	store.OrganizationStore
	lookups int
}

func (c *countingOrgs) GetByInstanceName(ctx context.Context, name string) (*store.OrganizationData, error) {
	c.lookups++
	return c.OrganizationStore.GetByInstanceName(ctx, name)
}

type fixture struct {
	pipeline *Pipeline
	orgs     *countingOrgs
	gen      *fakeGenerator
	sender   *fakeSender
	stores   *store.Stores
	org      *store.OrganizationData
}

func newFixture(t *testing.T, agentCfg *store.AgentConfig) *fixture {
	t.Helper()
	ctx := context.Background()
	stores, err := file.NewStores("", "")
	if err != nil {
		t.Fatal(err)
	}
	org, err := stores.Organizations.EnsureByAuthRef(ctx, "org_1", "Acme")
	if err != nil {
		t.Fatal(err)
	}
	creds := store.MessagingConfig{BaseURL: "https://gw.example.com", APIKey: "gw-key", InstanceName: "inst_abc"}
	if err := stores.Organizations.UpdateMessaging(ctx, org.ID, creds); err != nil {
		t.Fatal(err)
	}
	if agentCfg != nil {
		if err := stores.Agents.Create(ctx, &store.AgentData{OrgID: org.ID, Name: "Sales", Config: *agentCfg}); err != nil {
			t.Fatal(err)
		}
	}

	f := &fixture{
		orgs:   &countingOrgs{OrganizationStore: stores.Organizations},
		gen:    &fakeGenerator{reply: "Olá! Como posso ajudar?"},
		sender: &fakeSender{},
		stores: stores,
		org:    org,
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Organizations: f.orgs,
		Agents:        stores.Agents,
		Generator:     f.gen,
		Sender:        f.sender,
		Defaults:      BuiltinDefaults(),
	})
	return f
}

func upsert(instance, jid string, fromMe bool, text string) *whatsapp.WebhookEvent {
	data, _ := json.Marshal(map[string]any{
		"message": map[string]any{
			"key":     map[string]any{"remoteJid": jid, "fromMe": fromMe},
			"message": map[string]any{"conversation": text},
		},
	})
	return &whatsapp.WebhookEvent{Event: "messages.upsert", Instance: instance, Data: data}
}

func TestPipelineHappyPath(t *testing.T) {
	f := newFixture(t, &store.AgentConfig{Provider: "google", SystemPrompt: "Você é a Ana."})

	out, err := f.pipeline.HandleWebhook(context.Background(), upsert("inst_abc", "5511999999999@s.whatsapp.net", false, "Olá"))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if out.Status != OutcomeSuccess {
		t.Fatalf("outcome = %+v", out)
	}

	if len(f.gen.calls) != 1 {
		t.Fatalf("generator calls = %d", len(f.gen.calls))
	}
	req := f.gen.calls[0]
	if req.Provider != "google" || req.Model != "gemini-1.5-flash" || req.SystemPrompt != "Você é a Ana." {
		t.Errorf("generate request = %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != providers.RoleUser || req.Messages[0].Content != "Olá" {
		t.Errorf("history = %+v", req.Messages)
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("sends = %d", len(f.sender.sent))
	}
	s := f.sender.sent[0]
	if s.number != "5511999999999" || s.text != "Olá! Como posso ajudar?" || s.creds.InstanceName != "inst_abc" {
		t.Errorf("sent = %+v", s)
	}
}

func TestPipelineReplyFormatting(t *testing.T) {
	const completion = "**Oferta**: veja [site](https://x.com)\n\nOk\n\nOk"
	tests := []struct {
		name   string
		format bool
		want   string
	}{
		{"sent as generated", false, completion},
		{"formatting opt-in", true, "*Oferta*: veja site (https://x.com)\n\nOk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &store.AgentConfig{Provider: "google", FormatReplies: tt.format})
			f.gen.reply = completion

			out, err := f.pipeline.HandleWebhook(context.Background(), upsert("inst_abc", "5511999999999@s.whatsapp.net", false, "Olá"))
			if err != nil || out.Status != OutcomeSuccess {
				t.Fatalf("HandleWebhook = %+v, %v", out, err)
			}
			if len(f.sender.sent) != 1 {
				t.Fatalf("sends = %d", len(f.sender.sent))
			}
			if got := f.sender.sent[0].text; got != tt.want {
				t.Errorf("sent text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipelineAcknowledgesWithoutWork(t *testing.T) {
	tests := []struct {
		name       string
		event      *whatsapp.WebhookEvent
		wantReason string
	}{
		{
			name:       "non-upsert event",
			event:      &whatsapp.WebhookEvent{Event: "connection.update", Instance: "inst_abc", Data: json.RawMessage(`{"state":"open"}`)},
			wantReason: ReasonNotUpsert,
		},
		{
			name:       "from me",
			event:      upsert("inst_abc", "5511999999999@s.whatsapp.net", true, "Olá"),
			wantReason: ReasonFromMe,
		},
		{
			name:       "empty text",
			event:      upsert("inst_abc", "5511999999999@s.whatsapp.net", false, "   "),
			wantReason: ReasonEmptyText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &store.AgentConfig{})
			out, err := f.pipeline.HandleWebhook(context.Background(), tt.event)
			if err != nil {
				t.Fatal(err)
			}
			if out.Status != OutcomeReceived || out.Reason != tt.wantReason {
				t.Errorf("outcome = %+v", out)
			}
			if f.orgs.lookups != 0 || len(f.gen.calls) != 0 || len(f.sender.sent) != 0 {
				t.Errorf("side effects: lookups=%d generate=%d send=%d", f.orgs.lookups, len(f.gen.calls), len(f.sender.sent))
			}
		})
	}
}

func TestPipelineTestMode(t *testing.T) {
	cfg := &store.AgentConfig{TestMode: true, TestNumber: "+55 11 99999-9999"}

	t.Run("other sender skipped", func(t *testing.T) {
		f := newFixture(t, cfg)
		out, err := f.pipeline.HandleWebhook(context.Background(), upsert("inst_abc", "5511888888888@s.whatsapp.net", false, "Oi"))
		if err != nil {
			t.Fatal(err)
		}
		if out.Status != OutcomeSkipped || out.Reason != ReasonTestMode {
			t.Errorf("outcome = %+v", out)
		}
		if len(f.gen.calls) != 0 || len(f.sender.sent) != 0 {
			t.Error("skipped message reached generator or sender")
		}
	})

	t.Run("test number answered", func(t *testing.T) {
		f := newFixture(t, cfg)
		out, err := f.pipeline.HandleWebhook(context.Background(), upsert("inst_abc", "5511999999999@s.whatsapp.net", false, "Oi"))
		if err != nil {
			t.Fatal(err)
		}
		if out.Status != OutcomeSuccess || len(f.sender.sent) != 1 {
			t.Errorf("outcome = %+v, sends = %d", out, len(f.sender.sent))
		}
	})
}

func TestPipelineUnknownInstance(t *testing.T) {
	f := newFixture(t, &store.AgentConfig{})
	out, err := f.pipeline.HandleWebhook(context.Background(), upsert("nope", "5511@s.whatsapp.net", false, "Oi"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != OutcomeNotFound {
		t.Errorf("outcome = %+v", out)
	}
	if len(f.gen.calls) != 0 {
		t.Error("generator called for unknown instance")
	}
}

func TestPipelineNoAgent(t *testing.T) {
	f := newFixture(t, nil)
	out, err := f.pipeline.HandleWebhook(context.Background(), upsert("inst_abc", "5511@s.whatsapp.net", false, "Oi"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != OutcomeSkipped || out.Reason != ReasonNoAgent {
		t.Errorf("outcome = %+v", out)
	}
}

func TestPipelineGenerationFailure(t *testing.T) {
	f := newFixture(t, &store.AgentConfig{})
	f.gen.err = providers.ErrMissingAPIKey

	_, err := f.pipeline.HandleWebhook(context.Background(), upsert("inst_abc", "5511@s.whatsapp.net", false, "Oi"))
	if !errors.Is(err, providers.ErrMissingAPIKey) {
		t.Fatalf("got %v", err)
	}
	if len(f.sender.sent) != 0 {
		t.Error("sent despite generation failure")
	}
}

func TestPipelineSendFailureSwallowed(t *testing.T) {
	f := newFixture(t, &store.AgentConfig{})
	f.sender.err = errors.New("gateway down")

	out, err := f.pipeline.HandleWebhook(context.Background(), upsert("inst_abc", "5511@s.whatsapp.net", false, "Oi"))
	if err != nil {
		t.Fatalf("send failure leaked: %v", err)
	}
	if out.Status != OutcomeSuccess {
		t.Errorf("outcome = %+v", out)
	}
}
