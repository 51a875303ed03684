package index

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// conceptEmbedder maps keywords onto a handful of concept axes so tests can
// reason about similarity without a real model.
type conceptEmbedder struct {
	mu       sync.Mutex
	calls    int
	failOn   map[string]bool // texts that fail to embed
	emptyOn  map[string]bool // texts that embed to no vector
	batchErr error           // returned by BatchEmbed when set
}

var concepts = [][]string{
	{"wool", "coat", "warm", "winter", "outerwear", "jacket", "parka"},
	{"cotton", "t-shirt", "tee", "top", "shirt"},
	{"denim", "jeans", "trousers", "pants"},
	{"dress", "wedding", "gown", "evening"},
}

func conceptVector(text string) []float32 {
	v := make([]float32, len(concepts)+1)
	lower := strings.ToLower(text)
	for i, words := range concepts {
		for _, w := range words {
			if strings.Contains(lower, w) {
				v[i]++
			}
		}
	}
	// Keep every vector non-zero so cosine is always defined.
	v[len(concepts)] = 0.01
	return v
}

func (e *conceptEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.failOn[text] {
		return domain.EmbeddingResult{}, errors.New("provider rejected text")
	}
	if e.emptyOn[text] {
		return domain.EmbeddingResult{PromptTokens: 3, TotalTokens: 3}, nil
	}
	return domain.EmbeddingResult{Embedding: conceptVector(text), PromptTokens: 3, TotalTokens: 3}, nil
}

// batchConceptEmbedder adds BatchEmbed on top of conceptEmbedder.
type batchConceptEmbedder struct {
	conceptEmbedder
	batches int
}

func (e *batchConceptEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	e.batches++
	e.mu.Unlock()
	if e.batchErr != nil {
		return domain.BatchEmbeddingResult{}, e.batchErr
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		if e.failOn[t] {
			return domain.BatchEmbeddingResult{}, errors.New("provider rejected batch")
		}
		if !e.emptyOn[t] {
			out.Embeddings[i] = conceptVector(t)
		}
		out.TotalTokens += 3
	}
	return out, nil
}

func buildTestIndex(texts []string) (*Index, error) {
	items := make([]domain.CatalogItem, len(texts))
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		items[i] = domain.CatalogItem{ID: i, Description: t}
		vectors[i] = conceptVector(t)
	}
	return New(items, vectors, Cosine, Meta{BuildID: "test", Model: "concept"})
}
