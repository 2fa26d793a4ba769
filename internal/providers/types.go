package providers

import "context"

// Provider is the interface all LLM providers must implement.
type Provider interface {
	// Chat sends the conversation to the LLM and returns the whole completion.
	// One blocking call: no streaming, no retries.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "google").
	Name() string
}

// Message roles. RoleModel and RoleAssistant are interchangeable for the model side.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleModel     = "model"
	RoleAssistant = "assistant"
)

// Option keys for ChatRequest.Options.
const (
	OptTemperature = "temperature"
	OptMaxTokens   = "max_tokens"
)

// ChatRequest contains the input for a Chat call.
// System carries the persona instruction; Messages never contain system turns.
type ChatRequest struct {
	System   string         `json:"system,omitempty"`
	Messages []Message      `json:"messages"`
	Model    string         `json:"model,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// ChatResponse is the result from an LLM call.
type ChatResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Message is one role-tagged conversation turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", "model"
	Content string `json:"content"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
