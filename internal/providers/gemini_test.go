package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiChatRequestShape(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Olá! "},{"text":"Como posso ajudar?"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":7,"totalTokenCount":12}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("k", srv.URL, "")
	temp := 0.7
	resp, err := p.Chat(context.Background(), ChatRequest{
		System: "You are helpful.",
		Messages: []Message{
			{Role: RoleUser, Content: "Oi"},
			{Role: RoleAssistant, Content: "Olá"},
			{Role: RoleUser, Content: "Preço?"},
		},
		Options: map[string]any{OptTemperature: temp},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "Olá! Como posso ajudar?" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 12 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "You are helpful." {
		t.Errorf("system instruction = %+v", got.SystemInstruction)
	}
	wantRoles := []string{"user", "model", "user"}
	if len(got.Contents) != len(wantRoles) {
		t.Fatalf("contents = %+v", got.Contents)
	}
	for i, role := range wantRoles {
		if got.Contents[i].Role != role {
			t.Errorf("contents[%d].role = %q, want %q", i, got.Contents[i].Role, role)
		}
	}
	if got.Contents[2].Parts[0].Text != "Preço?" {
		t.Errorf("live message = %q", got.Contents[2].Parts[0].Text)
	}
	if got.GenerationConfig == nil || got.GenerationConfig.Temperature == nil || *got.GenerationConfig.Temperature != 0.7 {
		t.Errorf("generation config = %+v", got.GenerationConfig)
	}
}

func TestGeminiErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	msgs := []Message{{Role: RoleUser, Content: "hi"}}

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewGeminiProvider("", srv.URL, "").Chat(context.Background(), ChatRequest{Messages: msgs})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("non-2xx", func(t *testing.T) {
		_, err := NewGeminiProvider("k", srv.URL, "").Chat(context.Background(), ChatRequest{Messages: msgs})
		var he *HTTPError
		if !errors.As(err, &he) || he.Status != http.StatusTooManyRequests {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("empty conversation", func(t *testing.T) {
		_, err := NewGeminiProvider("k", srv.URL, "").Chat(context.Background(), ChatRequest{})
		if !errors.Is(err, ErrEmptyConversation) {
			t.Fatalf("got %v", err)
		}
	})
}
