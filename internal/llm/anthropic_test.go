package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func anthropicServer(t *testing.T, stopReason, text string, check func(anthropicRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(req)
		}

		_, _ = w.Write([]byte(`{"id":"msg_123","type":"message","role":"assistant",` +
			`"content":[{"type":"text","text":` + jsonString(text) + `}],` +
			`"model":"claude-3-5-sonnet-20241022","stop_reason":"` + stopReason + `",` +
			`"usage":{"input_tokens":50,"output_tokens":50}}`))
	}))
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestAnthropicProvider_Generate_Success(t *testing.T) {
	server := anthropicServer(t, "end_turn", `{"category":"fear"}]`, func(req anthropicRequest) {
		if req.System != "rules" {
			t.Errorf("Expected system prompt, got %q", req.System)
		}
		if len(req.Messages) != 2 || req.Messages[1].Role != "assistant" || req.Messages[1].Content != "[" {
			t.Errorf("Expected assistant prefill for JSON output, got %+v", req.Messages)
		}
		if req.Metadata == nil || req.Metadata.UserID != "batch-1/4" {
			t.Errorf("Expected route hint metadata, got %+v", req.Metadata)
		}
	})
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Generate(context.Background(), Request{
		System:     "rules",
		Prompt:     "samples",
		JSONOutput: true,
		RouteHint:  "batch-1/4",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != `[{"category":"fear"}]` {
		t.Errorf("Expected prefill to be prepended, got %s", resp.Text)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Expected 100 tokens, got %d", resp.TokensUsed)
	}
	if resp.Truncated {
		t.Error("Expected not truncated")
	}
}

func TestAnthropicProvider_Generate_MaxTokens(t *testing.T) {
	server := anthropicServer(t, "max_tokens", `[{"category":"fe`, nil)
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	resp, err := provider.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !resp.Truncated {
		t.Error("Expected max_tokens stop reason to mark the response truncated")
	}
}

func TestAnthropicProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := provider.Generate(context.Background(), Request{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid_request_error") {
		t.Errorf("Expected API error type in message, got %v", err)
	}
}

func TestAnthropicProvider_Generate_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"msg_1","content":[],"model":"claude"}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	if _, err := provider.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("Expected error for empty content")
	}
}

func TestNewAnthropicProvider_RequiresKey(t *testing.T) {
	if _, err := NewAnthropicProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
