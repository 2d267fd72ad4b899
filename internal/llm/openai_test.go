package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIGatewayGenerate(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"sql\":\"SELECT 2\"}"}}]}`))
	}))
	defer server.Close()

	gateway, err := NewOpenAIGateway(Config{BaseURL: server.URL + "/", APIKey: "secret", Model: "gpt-test", JSONOutput: true})
	if err != nil {
		t.Fatalf("NewOpenAIGateway() error = %v", err)
	}
	out, err := gateway.Generate(context.Background(), "count orders")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out.Text != `{"sql":"SELECT 2"}` || out.Model != "gpt-test" {
		t.Fatalf("unexpected output %#v", out)
	}
	if payload["model"] != "gpt-test" {
		t.Fatalf("model = %#v", payload["model"])
	}
	format, _ := payload["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("response_format = %#v", payload["response_format"])
	}
}

func TestOpenAIGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer empty":
			_, _ = w.Write([]byte(`{"choices":[]}`))
		default:
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		}
	}))
	defer server.Close()

	limited, err := NewOpenAIGateway(Config{BaseURL: server.URL, APIKey: "limited"})
	if err != nil {
		t.Fatalf("NewOpenAIGateway() error = %v", err)
	}
	_, err = limited.Generate(context.Background(), "x")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 TransportError, got %v", err)
	}

	empty, err := NewOpenAIGateway(Config{BaseURL: server.URL, APIKey: "empty"})
	if err != nil {
		t.Fatalf("NewOpenAIGateway() error = %v", err)
	}
	_, err = empty.Generate(context.Background(), "x")
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestBuildOpenAIPayloadWithoutJSONHint(t *testing.T) {
	payload := buildOpenAIPayload("m", 0.1, false, "prompt")
	if _, ok := payload["response_format"]; ok {
		t.Fatalf("response_format should be absent: %#v", payload)
	}
	messages, _ := payload["messages"].([]map[string]string)
	if len(messages) != 2 || messages[1]["content"] != "prompt" {
		t.Fatalf("messages = %#v", payload["messages"])
	}
}
