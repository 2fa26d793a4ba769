package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/leadclaw/internal/store"
)

// ErrNoAgent means the tenant has no agent that may answer.
var ErrNoAgent = errors.New("no active agent configured")

// DefaultSystemPrompt is used when an agent has no persona configured.
const DefaultSystemPrompt = "Você é um assistente virtual prestativo. Responda de forma breve, educada e objetiva."

// Defaults fill in unset agent config fields.
type Defaults struct {
	Provider     string
	Model        string
	SystemPrompt string
	Temperature  float64
}

// BuiltinDefaults are used when the config file does not override them.
func BuiltinDefaults() Defaults {
	return Defaults{
		Provider:     store.ProviderGoogle,
		Model:        "gemini-1.5-flash",
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  0.7,
	}
}

// WithDefaults returns cfg with empty provider, model, prompt and temperature filled in.
func WithDefaults(cfg store.AgentConfig, d Defaults) store.AgentConfig {
	b := BuiltinDefaults()
	if d.Provider == "" {
		d.Provider = b.Provider
	}
	if d.Model == "" {
		d.Model = b.Model
	}
	if d.SystemPrompt == "" {
		d.SystemPrompt = b.SystemPrompt
	}

	if cfg.Provider == "" {
		cfg.Provider = d.Provider
	}
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = d.SystemPrompt
	}
	if cfg.Temperature == nil {
		t := d.Temperature
		cfg.Temperature = &t
	}
	return cfg
}

// PickAgent selects the answering agent from a list already in store order
// (is_default first, then oldest). The first default agent wins; otherwise the
// first active one. Inactive agents never answer.
func PickAgent(agents []store.AgentData) *store.AgentData {
	for i := range agents {
		if agents[i].IsDefault && agents[i].Status != store.AgentStatusInactive {
			return &agents[i]
		}
	}
	for i := range agents {
		if agents[i].Status != store.AgentStatusInactive {
			return &agents[i]
		}
	}
	return nil
}

// SelectActiveAgent lists the tenant's agents and picks the one that answers.
func SelectActiveAgent(ctx context.Context, agents store.AgentStore, orgID uuid.UUID) (*store.AgentData, error) {
	list, err := agents.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	a := PickAgent(list)
	if a == nil {
		return nil, ErrNoAgent
	}
	return a, nil
}
