package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/relnotary/relnotary/internal/config"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence with preamble", "Here you go:\n```json\n{\"a\":1}\n```\nEnjoy!", `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "carrier-pigeon"})
	if err == nil {
		t.Error("New() expected error for unknown provider")
	}
}

func TestNew_RegisteredProviders(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai"} {
		gen, err := New(config.LLMConfig{Provider: provider, APIKey: "key", Model: "model"})
		if err != nil {
			t.Errorf("New(%q) error = %v", provider, err)
		}
		if gen == nil {
			t.Errorf("New(%q) returned nil generator", provider)
		}
	}
}

func TestAnthropicClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}

		var req struct {
			System   string `json:"system"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.System != "be brief" {
			t.Errorf("system = %q, want %q", req.System, "be brief")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "generated notes"}},
		})
	}))
	defer server.Close()

	c := NewAnthropic("test-key", "test-model", WithAnthropicBaseURL(server.URL))
	got, err := c.Generate(context.Background(), "be brief", "write notes")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "generated notes" {
		t.Errorf("Generate() = %q, want %q", got, "generated notes")
	}
}

func TestAnthropicClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "second try"}},
		})
	}))
	defer server.Close()

	c := NewAnthropic("test-key", "test-model", WithAnthropicBaseURL(server.URL), WithAnthropicRetries(2))
	got, err := c.Generate(context.Background(), "", "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "second try" {
		t.Errorf("Generate() = %q, want %q", got, "second try")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestAnthropicClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewAnthropic("bad-key", "test-model", WithAnthropicBaseURL(server.URL), WithAnthropicRetries(3))
	_, err := c.Generate(context.Background(), "", "prompt")
	if err == nil {
		t.Fatal("Generate() expected error for 4xx response")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on client error)", calls.Load())
	}
}

func TestOpenAIClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing or incorrect authorization header")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "generated notes"}},
			},
		})
	}))
	defer server.Close()

	c := NewOpenAI("test-key", "test-model", WithOpenAIBaseURL(server.URL))
	got, err := c.Generate(context.Background(), "be brief", "write notes")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "generated notes" {
		t.Errorf("Generate() = %q, want %q", got, "generated notes")
	}
}
