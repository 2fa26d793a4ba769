package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGeminiBase  = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-1.5-flash"
)

// GeminiProvider implements Provider over the Gemini generateContent REST API.
type GeminiProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	client       *http.Client
}

func NewGeminiProvider(apiKey, apiBase, defaultModel string) *GeminiProvider {
	if apiBase == "" {
		apiBase = defaultGeminiBase
	}
	if defaultModel == "" {
		defaultModel = defaultGeminiModel
	}
	return &GeminiProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimRight(apiBase, "/"),
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *GeminiProvider) Name() string         { return "google" }
func (p *GeminiProvider) DefaultModel() string { return p.defaultModel }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if len(req.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	data, err := json.Marshal(p.buildRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("google: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.apiBase, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("google: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPError{
			Status: resp.StatusCode,
			Body:   fmt.Sprintf("google: %s", string(respBody)),
		}
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("google: decode response: %w", err)
	}
	return parseGeminiResponse(&gr)
}

// buildRequestBody seeds contents with every turn except the last, then appends
// the last turn as the live message.
func (p *GeminiProvider) buildRequestBody(req ChatRequest) geminiRequest {
	history, last := req.Messages[:len(req.Messages)-1], req.Messages[len(req.Messages)-1]

	body := geminiRequest{Contents: make([]geminiContent, 0, len(req.Messages))}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range history {
		body.Contents = append(body.Contents, geminiContent{Role: geminiRole(m.Role), Parts: []geminiPart{{Text: m.Content}}})
	}
	body.Contents = append(body.Contents, geminiContent{Role: geminiRole(last.Role), Parts: []geminiPart{{Text: last.Content}}})

	var gen geminiGenerationConfig
	if v, ok := req.Options[OptTemperature].(float64); ok {
		gen.Temperature = &v
	}
	if v, ok := req.Options[OptMaxTokens].(int); ok && v > 0 {
		gen.MaxOutputTokens = v
	}
	if gen.Temperature != nil || gen.MaxOutputTokens > 0 {
		body.GenerationConfig = &gen
	}
	return body
}

func geminiRole(role string) string {
	if role == RoleModel || role == RoleAssistant {
		return RoleModel
	}
	return RoleUser
}

func parseGeminiResponse(gr *geminiResponse) (*ChatResponse, error) {
	if len(gr.Candidates) == 0 {
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("google: prompt blocked: %s", gr.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("google: empty response")
	}

	c := gr.Candidates[0]
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		sb.WriteString(part.Text)
	}
	result := &ChatResponse{
		Content:      sb.String(),
		FinishReason: strings.ToLower(c.FinishReason),
	}
	if u := gr.UsageMetadata; u != nil {
		result.Usage = &Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return result, nil
}
