package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.0-flash"
)

type GeminiGateway struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	jsonOutput  bool
	maxTokens   int
	client      *http.Client
}

func NewGeminiGateway(cfg Config) (*GeminiGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	return &GeminiGateway{
		baseURL:     strings.TrimRight(valueOr(cfg.BaseURL, defaultGeminiBaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       valueOr(cfg.Model, defaultGeminiModel),
		temperature: cfg.Temperature,
		jsonOutput:  cfg.JSONOutput,
		maxTokens:   cfg.MaxTokens,
		client:      newHTTPClient(cfg.Timeout),
	}, nil
}

func (g *GeminiGateway) Model() string {
	return g.model
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (g *GeminiGateway) Generate(ctx context.Context, prompt string) (Output, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxTokens,
		},
	}
	if g.jsonOutput {
		payload.GenerationConfig.ResponseMimeType = "application/json"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderGemini, Err: fmt.Errorf("marshal request: %w", err)}
	}

	endpoint := g.baseURL + "/v1beta/models/" + url.PathEscape(g.model) + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderGemini, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderGemini, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderGemini, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Output{}, &TransportError{Provider: ProviderGemini, StatusCode: resp.StatusCode, Err: fmt.Errorf("body=%s", truncateBody(rawRespBody))}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Output{}, &ProtocolError{Provider: ProviderGemini, Reason: "decode response", Err: err}
	}
	if len(parsed.Candidates) == 0 {
		reason := "no candidates"
		if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
			reason += " (blocked: " + parsed.PromptFeedback.BlockReason + ")"
		}
		return Output{}, &ProtocolError{Provider: ProviderGemini, Reason: reason}
	}
	content := parsed.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0].Text == nil {
		return Output{}, &ProtocolError{Provider: ProviderGemini, Reason: "candidate has no text part"}
	}
	return Output{Text: *content.Parts[0].Text, Model: g.model}, nil
}
