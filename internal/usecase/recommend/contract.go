package recommend

import (
	"context"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// Normalizer rewrites a raw query into a normalized intent.
type Normalizer interface {
	Normalize(ctx context.Context, query string) (domain.NormalizedIntent, error)
}

// Retriever returns reranking candidates for an intent.
type Retriever interface {
	Retrieve(ctx context.Context, intent domain.NormalizedIntent, k int) ([]domain.Candidate, error)
}

// Reranker picks and orders n of the candidates.
type Reranker interface {
	Rerank(ctx context.Context, intent domain.NormalizedIntent, cands []domain.Candidate, n int) ([]int, error)
}

// Catalog resolves ids to displayable items.
type Catalog interface {
	Item(id int) (domain.CatalogItem, bool)
}
