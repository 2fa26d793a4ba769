package providers

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	got ChatRequest
}

func (f *fakeProvider) Name() string         { return "google" }
func (f *fakeProvider) DefaultModel() string { return "fake" }
func (f *fakeProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.got = req
	return &ChatResponse{Content: "reply"}, nil
}

func TestSplitSystem(t *testing.T) {
	system, history := SplitSystem("Base prompt", []Message{
		{Role: RoleSystem, Content: "Extra rule"},
		{Role: RoleUser, Content: "Olá"},
		{Role: RoleSystem, Content: "  "},
	})
	if system != "Base prompt\n\nExtra rule" {
		t.Errorf("system = %q", system)
	}
	if len(history) != 1 || history[0].Content != "Olá" {
		t.Errorf("history = %+v", history)
	}
}

func TestGenerateResponse(t *testing.T) {
	fake := &fakeProvider{}
	reg := NewRegistry()
	reg.Register(fake)
	temp := 0.3

	text, err := GenerateResponse(context.Background(), reg, GenerateRequest{
		Provider:     "google",
		Model:        "gemini-1.5-flash",
		SystemPrompt: "Persona",
		Temperature:  &temp,
		Messages:     []Message{{Role: RoleSystem, Content: "rule"}, {Role: RoleUser, Content: "Olá"}},
	})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if text != "reply" {
		t.Errorf("text = %q", text)
	}
	for _, m := range fake.got.Messages {
		if m.Role == RoleSystem {
			t.Errorf("system message leaked into history: %+v", fake.got.Messages)
		}
	}
	if fake.got.System != "Persona\n\nrule" || fake.got.Options[OptTemperature] != 0.3 {
		t.Errorf("request = %+v", fake.got)
	}
}

func TestGenerateUnimplementedProvider(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeProvider{})

	for _, name := range []string{"openai", "anthropic", "mystery"} {
		t.Run(name, func(t *testing.T) {
			_, err := GenerateResponse(context.Background(), reg, GenerateRequest{
				Provider: name,
				Messages: []Message{{Role: RoleUser, Content: "hi"}},
			})
			if !errors.Is(err, ErrUnimplementedProvider) {
				t.Fatalf("got %v", err)
			}
		})
	}
}
