package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5-20250929"
	defaultAnthropicMaxTokens = 2048
)

type AnthropicGateway struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewAnthropicGateway(cfg Config) (*AnthropicGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(newHTTPClient(cfg.Timeout))}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicGateway{
		client:    anthropic.NewClient(strings.TrimSpace(cfg.APIKey), opts...),
		model:     valueOr(cfg.Model, defaultAnthropicModel),
		maxTokens: maxTokens,
	}, nil
}

func (g *AnthropicGateway) Model() string {
	return g.model
}

func (g *AnthropicGateway) Generate(ctx context.Context, prompt string) (Output, error) {
	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return Output{}, &TransportError{Provider: ProviderAnthropic, Err: err}
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return Output{Text: *block.Text, Model: g.model}, nil
		}
	}
	return Output{}, &ProtocolError{Provider: ProviderAnthropic, Reason: "message has no text content"}
}
