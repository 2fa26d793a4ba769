package providers

import (
	"context"
	"fmt"
	"strings"
)

// GenerateRequest is a provider-agnostic reply request built from an agent config.
type GenerateRequest struct {
	Provider     string
	Model        string
	SystemPrompt string
	Temperature  *float64
	Messages     []Message
}

// SplitSystem pulls system-role turns out of the history and joins them, after
// the base prompt, into one persona instruction.
func SplitSystem(systemPrompt string, messages []Message) (string, []Message) {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(systemPrompt); s != "" {
		parts = append(parts, s)
	}
	history := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				parts = append(parts, s)
			}
			continue
		}
		history = append(history, m)
	}
	return strings.Join(parts, "\n\n"), history
}

// GenerateResponse resolves the provider and returns the reply text.
func GenerateResponse(ctx context.Context, reg *Registry, req GenerateRequest) (string, error) {
	p, err := reg.Get(req.Provider)
	if err != nil {
		return "", err
	}
	system, history := SplitSystem(req.SystemPrompt, req.Messages)
	if len(history) == 0 {
		return "", ErrEmptyConversation
	}

	chat := ChatRequest{System: system, Messages: history, Model: req.Model}
	if req.Temperature != nil {
		chat.Options = map[string]any{OptTemperature: *req.Temperature}
	}
	resp, err := p.Chat(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("%s chat: %w", p.Name(), err)
	}
	return resp.Content, nil
}

// Generate is GenerateResponse bound to the registry.
func (r *Registry) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return GenerateResponse(ctx, r, req)
}
