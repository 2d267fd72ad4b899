package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-5"
)

// OpenAIGateway talks to any OpenAI compatible chat completions endpoint.
type OpenAIGateway struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	jsonOutput  bool
	client      *http.Client
}

func NewOpenAIGateway(cfg Config) (*OpenAIGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return &OpenAIGateway{
		baseURL:     strings.TrimRight(valueOr(cfg.BaseURL, defaultOpenAIBaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       valueOr(cfg.Model, defaultOpenAIModel),
		temperature: cfg.Temperature,
		jsonOutput:  cfg.JSONOutput,
		client:      newHTTPClient(cfg.Timeout),
	}, nil
}

func (g *OpenAIGateway) Model() string {
	return g.model
}

func (g *OpenAIGateway) Generate(ctx context.Context, prompt string) (Output, error) {
	body, err := json.Marshal(buildOpenAIPayload(g.model, g.temperature, g.jsonOutput, prompt))
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderOpenAI, Err: fmt.Errorf("marshal chat payload: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderOpenAI, Err: fmt.Errorf("build chat request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderOpenAI, Err: fmt.Errorf("request chat completion: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("read chat response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Output{}, &TransportError{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: fmt.Errorf("body=%s", truncateBody(rawRespBody))}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Output{}, &ProtocolError{Provider: ProviderOpenAI, Reason: "decode chat completion response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return Output{}, &ProtocolError{Provider: ProviderOpenAI, Reason: "empty chat completion choices"}
	}
	content := parsed.Choices[0].Message.Content
	if content == nil {
		return Output{}, &ProtocolError{Provider: ProviderOpenAI, Reason: "choice has no message content"}
	}
	return Output{Text: *content, Model: g.model}, nil
}

func buildOpenAIPayload(model string, temperature float64, jsonOutput bool, prompt string) map[string]any {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": "You translate user requests into SQL and reply with a single JSON object."},
			{"role": "user", "content": prompt},
		},
		"temperature": temperature,
	}
	if jsonOutput {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}
	return payload
}
