package retrieve

import (
	"context"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// Searcher returns the k catalog items nearest to text.
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]domain.Candidate, error)
}
