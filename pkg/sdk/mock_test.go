package lookbook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/index"
	describeuc "github.com/kailas-cloud/lookbook/internal/usecase/describe"
	healthuc "github.com/kailas-cloud/lookbook/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/lookbook/internal/usecase/recommend"
)

// --- use case mocks ---

type mockRecommendUC struct {
	recommendFn func(ctx context.Context, req recommenduc.Request) (domain.Recommendation, error)
	normalizeFn func(ctx context.Context, query, itemDescription string) (domain.NormalizedIntent, error)
}

func (m *mockRecommendUC) Recommend(ctx context.Context, req recommenduc.Request) (domain.Recommendation, error) {
	return m.recommendFn(ctx, req)
}

func (m *mockRecommendUC) Normalize(ctx context.Context, query, itemDescription string) (domain.NormalizedIntent, error) {
	return m.normalizeFn(ctx, query, itemDescription)
}

type mockDescribeUC struct {
	fn func(ctx context.Context, img describeuc.Image) (string, error)
}

func (m *mockDescribeUC) Describe(ctx context.Context, img describeuc.Image) (string, error) {
	return m.fn(ctx, img)
}

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

type mockCatalog struct {
	items map[int]domain.CatalogItem
	meta  index.Meta
}

func (m *mockCatalog) Item(id int) (domain.CatalogItem, bool) {
	it, ok := m.items[id]
	return it, ok
}
func (m *mockCatalog) Len() int         { return len(m.items) }
func (m *mockCatalog) Dim() int         { return 4 }
func (m *mockCatalog) Meta() index.Meta { return m.meta }

// --- embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

var axes = [][]string{
	{"winter", "warm", "coat", "wool"},
	{"dress", "wedding", "silk"},
	{"shoe", "running", "sneaker"},
}

// keywordEmbedder places texts on keyword axes plus a small constant axis.
func keywordEmbedder() *mockEmbedder {
	return &mockEmbedder{fn: func(_ context.Context, text string) (EmbeddingResult, error) {
		text = strings.ToLower(text)
		v := make([]float32, len(axes)+1)
		v[len(axes)] = 0.05
		for i, words := range axes {
			for _, w := range words {
				if strings.Contains(text, w) {
					v[i]++
				}
			}
		}
		return EmbeddingResult{Embedding: v, PromptTokens: 4, TotalTokens: 4}, nil
	}}
}

// --- fake chat completions endpoint ---

// chatProvider answers normalization with a fixed intent and reranking with
// the first stock item of the prompt.
type chatProvider struct {
	calls atomic.Int32
}

func (p *chatProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" {
		http.NotFound(w, r)
		return
	}
	p.calls.Add(1)
	var req struct {
		ResponseFormat *json.RawMessage `json:"response_format"`
		Messages       []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	content := "warm wool winter coat"
	if req.ResponseFormat != nil {
		var prompt struct {
			StockItems []struct {
				ID string `json:"id"`
			} `json:"stock_items"`
		}
		last := req.Messages[len(req.Messages)-1].Content
		if i, j := strings.Index(last, "{"), strings.LastIndex(last, "}"); i >= 0 && j > i {
			_ = json.Unmarshal([]byte(last[i:j+1]), &prompt)
		}
		id := "0"
		if len(prompt.StockItems) > 0 {
			id = prompt.StockItems[0].ID
		}
		content = fmt.Sprintf(`{"results":[{"id":%q}]}`, id)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25},
	})
}
