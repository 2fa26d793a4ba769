package store

import (
	"context"

	"github.com/google/uuid"
)

// Agent providers. Only ProviderGoogle has a working implementation.
const (
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Agent statuses.
const (
	AgentStatusActive   = "active"
	AgentStatusInactive = "inactive"
)

// IsValidProvider reports whether p is one of the known provider identifiers.
func IsValidProvider(p string) bool {
	switch p {
	case ProviderGoogle, ProviderOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// AgentConfig is the JSONB config blob of an agent.
type AgentConfig struct {
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	TestMode     bool     `json:"testMode"`
	TestNumber   string   `json:"testNumber,omitempty"`

	// FormatReplies opts the agent into reply cleanup before sending
	// (reasoning tags, Markdown to WhatsApp markup). Off: the completion is sent as is.
	FormatReplies bool `json:"formatReplies,omitempty"`
}

// AgentData is a tenant-configured AI responder.
type AgentData struct {
	BaseModel
	OrgID       uuid.UUID   `json:"org_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Status      string      `json:"status"`
	IsDefault   bool        `json:"is_default"`
	Config      AgentConfig `json:"config"`
}

// AgentStore manages agents. List returns agents ordered by
// is_default DESC, created_at ASC, id ASC.
type AgentStore interface {
	Create(ctx context.Context, agent *AgentData) error
	Get(ctx context.Context, orgID, id uuid.UUID) (*AgentData, error)
	List(ctx context.Context, orgID uuid.UUID) ([]AgentData, error)
	Update(ctx context.Context, agent *AgentData) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// AgentOrderLess is the ordering every AgentStore implementation honors.
func AgentOrderLess(a, b AgentData) bool {
	if a.IsDefault != b.IsDefault {
		return a.IsDefault
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
