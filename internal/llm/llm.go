// Package llm sends prompts to a hosted large language model and returns the raw generated text.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultTimeout = 8 * time.Second
)

type Output struct {
	Text  string
	Model string
}

// Gateway makes a single generation attempt per call. Failures are *TransportError or *ProtocolError.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (Output, error)
	Model() string
}

type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	// JSONOutput asks the provider for JSON formatted output where supported.
	JSONOutput bool
	MaxTokens  int
}

// TransportError covers network failures, timeouts and non-2xx responses.
type TransportError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed status=%d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError means the provider answered but the envelope did not carry generated text.
type ProtocolError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s response invalid: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s response invalid: %s", e.Provider, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// New builds the gateway for cfg.Provider. On error the returned Gateway is a nil interface.
func New(cfg Config) (Gateway, error) {
	var (
		gateway Gateway
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		gateway, err = unwrapGateway(NewGeminiGateway(cfg))
	case ProviderOpenAI:
		gateway, err = unwrapGateway(NewOpenAIGateway(cfg))
	case ProviderAnthropic:
		gateway, err = unwrapGateway(NewAnthropicGateway(cfg))
	default:
		err = fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return gateway, nil
}

func unwrapGateway[G Gateway](gateway G, err error) (Gateway, error) {
	if err != nil {
		return nil, err
	}
	return gateway, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
