// Package retrieve turns a normalized intent into reranking candidates.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// DefaultK is the candidate count handed to the reranker.
const DefaultK = 30

// Service is the retriever.
type Service struct {
	searcher Searcher
	defaultK int
}

// New creates a retriever. defaultK <= 0 selects DefaultK.
func New(searcher Searcher, defaultK int) *Service {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	return &Service{searcher: searcher, defaultK: defaultK}
}

// DefaultK returns the k used when callers pass 0.
func (s *Service) DefaultK() int { return s.defaultK }

// Retrieve returns up to k candidates for intent, best first.
// k == 0 selects the default; negative k is rejected.
func (s *Service) Retrieve(ctx context.Context, intent domain.NormalizedIntent, k int) ([]domain.Candidate, error) {
	if strings.TrimSpace(intent.String()) == "" {
		return nil, fmt.Errorf("%w: intent is empty", domain.ErrInvalidRequest)
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidRequest, k)
	}
	if k == 0 {
		k = s.defaultK
	}

	cands, err := s.searcher.Search(ctx, intent.String(), k)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	return cands, nil
}
