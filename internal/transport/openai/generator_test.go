package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/retry"
)

// chatRequest is the subset of the chat completion request the tests inspect.
type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []json.RawMessage `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
	}
}

func newTestGenerator(t *testing.T, url string) *Generator {
	t.Helper()
	g, err := NewGenerator(&GeneratorConfig{APIKey: "test-key", BaseURL: url, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestNewGenerator_MissingKey(t *testing.T) {
	_, err := NewGenerator(&GeneratorConfig{})
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestGenerator_Complete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse(`{"results":[{"id":"1"}]}`))
	}))
	defer server.Close()

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := newTestGenerator(t, server.URL).Complete(ctx, domain.CompletionRequest{
		Model: "test-model",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "system"},
			{Role: domain.RoleUser, Content: "user"},
		},
		MaxTokens: 1500,
		JSONMode:  true,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Content != `{"results":[{"id":"1"}]}` {
		t.Errorf("unexpected content %q", res.Content)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 || got.MaxTokens != 1500 {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format, got %+v", got.ResponseFormat)
	}
	if got.Temperature <= 0 || got.Temperature > 1e-30 {
		t.Errorf("zero temperature must be sent as the smallest positive float, got %g", got.Temperature)
	}
	if usage.GenerationTokens != 20 {
		t.Errorf("expected 20 generation tokens recorded, got %d", usage.GenerationTokens)
	}
}

func TestGenerator_Complete_ImageMessage(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse("- Product Type: coat"))
	}))
	defer server.Close()

	_, err := newTestGenerator(t, server.URL).Complete(context.Background(), domain.CompletionRequest{
		Model:    "vision",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "describe", ImageURL: "https://img/x.jpg"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	msgs := raw["messages"].([]any)
	parts, ok := msgs[0].(map[string]any)["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected two content parts, got %v", msgs[0])
	}
	img := parts[1].(map[string]any)
	if img["type"] != "image_url" {
		t.Errorf("expected image_url part, got %v", img["type"])
	}
}

func TestGenerator_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	}))
	defer server.Close()

	_, err := newTestGenerator(t, server.URL).Complete(context.Background(), domain.CompletionRequest{Model: "m"})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerator_Complete_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "overloaded"}})
	}))
	defer server.Close()

	_, err := newTestGenerator(t, server.URL).Complete(context.Background(), domain.CompletionRequest{Model: "m"})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if retry.IsPermanent(err) {
		t.Error("503 must stay retryable")
	}
}
