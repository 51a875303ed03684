package index

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

type hit struct {
	pos   int
	id    int
	score float64
}

// worse reports whether a ranks below b: lower score, or equal score and larger id.
func worse(a, b hit) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.id > b.id
}

// hitHeap is a min-heap on rank, so the root is the weakest kept hit.
type hitHeap []hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// SearchVector returns the k items most similar to vec, best first, ties by
// ascending id. k larger than the index returns every item.
func (x *Index) SearchVector(vec []float32, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidRequest, k)
	}
	if len(vec) != x.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrVectorDimMismatch, len(vec), x.dim)
	}
	if k > len(x.items) {
		k = len(x.items)
	}

	var qnorm float64
	if x.metric == Cosine {
		qnorm = norm(vec)
	}

	h := make(hitHeap, 0, k)
	for i, v := range x.vectors {
		c := hit{pos: i, id: x.items[i].ID, score: x.score(vec, qnorm, v, x.norms[i])}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if worse(h[0], c) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	out := make([]domain.Candidate, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		c := heap.Pop(&h).(hit)
		out[i] = domain.Candidate{
			ID:      c.id,
			Content: x.items[c.pos].Description,
			Score:   c.score,
		}
	}
	return out, nil
}

func (x *Index) score(q []float32, qnorm float64, v []float32, vnorm float64) float64 {
	d := dot(q, v)
	if x.metric == InnerProduct {
		return d
	}
	if qnorm == 0 || vnorm == 0 {
		return 0
	}
	return d / (qnorm * vnorm)
}

// Searcher answers text queries against an Index. The embedder must be the
// one the index was built with (see Index.CheckModel).
type Searcher struct {
	index    *Index
	embedder domain.Embedder
}

// NewSearcher creates a text searcher.
func NewSearcher(idx *Index, embedder domain.Embedder) *Searcher {
	return &Searcher{index: idx, embedder: embedder}
}

// Search embeds text and returns its k nearest catalog items.
func (s *Searcher) Search(ctx context.Context, text string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidRequest, k)
	}
	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(res.TotalTokens)

	cands, err := s.index.SearchVector(res.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return cands, nil
}

// Index returns the searched index.
func (s *Searcher) Index() *Index { return s.index }
