// Package rerank asks a generative model to pick and order the best
// candidates for an intent, and validates what comes back.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/metrics"
	"github.com/kailas-cloud/lookbook/internal/retry"
)

// Defaults for reranking calls.
const (
	DefaultN         = 4
	DefaultMaxTokens = 1500
	DefaultAttempts  = 5
)

// Config holds reranker settings. Zero fields take the defaults above.
type Config struct {
	Model          string
	MaxTokens      int
	Attempts       int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// Service is the LLM reranker.
type Service struct {
	gen    Generator
	cfg    Config
	policy retry.Policy
	logger *zap.Logger
}

// New creates a reranker.
func New(gen Generator, cfg Config, logger *zap.Logger) (*Service, error) {
	if gen == nil {
		return nil, fmt.Errorf("rerank: generator is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("rerank: model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gen: gen,
		cfg: cfg,
		policy: retry.Policy{
			Attempts:       cfg.Attempts,
			BaseDelay:      cfg.BaseDelay,
			MaxDelay:       cfg.MaxDelay,
			AttemptTimeout: cfg.AttemptTimeout,
			Jitter:         true,
		},
		logger: logger,
	}, nil
}

// Rerank returns the ids of the n candidates that best match intent, most
// relevant first. Every id belongs to cands and appears once. n larger than
// the candidate count is clamped.
func (s *Service) Rerank(
	ctx context.Context, intent domain.NormalizedIntent, cands []domain.Candidate, n int,
) ([]int, error) {
	if len(cands) == 0 {
		return nil, domain.ErrEmptyCandidates
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be at least 1, got %d", domain.ErrInvalidRequest, n)
	}
	n = min(n, len(cands))

	msgs, err := buildMessages(intent, cands, n)
	if err != nil {
		return nil, err
	}
	req := domain.CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    msgs,
		Temperature: 0,
		MaxTokens:   s.cfg.MaxTokens,
		JSONMode:    true,
	}

	var ids []int
	err = retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) error {
		resp, err := s.gen.Complete(ctx, req)
		if err != nil {
			return err //nolint:wrapcheck // classified below
		}
		parsed, err := parseResponse(resp.Content)
		if err != nil {
			return err
		}
		sel, err := selectIDs(parsed, cands, n)
		if err != nil {
			return err
		}
		if len(sel.unknown) > 0 || len(sel.duplicates) > 0 {
			s.logger.Warn("Rerank response contained invalid ids",
				zap.Int("attempt", attempt),
				zap.Ints("unknown", sel.unknown),
				zap.Ints("duplicates", sel.duplicates),
			)
		}
		ids = sel.ids
		return nil
	}, s.onRetry)
	if err != nil {
		if errors.Is(err, domain.ErrRerankFormat) {
			return nil, fmt.Errorf("rerank: %w", err)
		}
		return nil, fmt.Errorf("%w: rerank: %w", domain.ErrGeneration, err)
	}
	return ids, nil
}

func (s *Service) onRetry(attempt int, err error, wait time.Duration) {
	metrics.GenerationRetriesTotal.WithLabelValues("rerank").Inc()
	s.logger.Warn("Rerank attempt failed, retrying",
		zap.Int("attempt", attempt),
		zap.Duration("wait", wait),
		zap.Bool("format_error", errors.Is(err, domain.ErrRerankFormat)),
		zap.Error(err),
	)
}
