// Package normalize rewrites free-form shopping queries into a canonical
// first-person statement of intent before retrieval.
package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/metrics"
	"github.com/kailas-cloud/lookbook/internal/retry"
)

// Sampling defaults for intent rewriting.
const (
	DefaultTemperature      = 0.3
	DefaultTopP             = 0.9
	DefaultFrequencyPenalty = 0.2
	DefaultMaxTokens        = 200
	DefaultAttempts         = 3
)

// Config holds normalizer settings. Zero fields take the defaults above;
// AttemptTimeout 0 leaves attempts bounded only by the caller's context.
type Config struct {
	Model          string
	MaxTokens      int
	Attempts       int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// Service is the intent normalizer.
type Service struct {
	gen    Generator
	cfg    Config
	policy retry.Policy
	logger *zap.Logger
}

// New creates an intent normalizer.
func New(gen Generator, cfg Config, logger *zap.Logger) (*Service, error) {
	if gen == nil {
		return nil, fmt.Errorf("normalize: generator is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("normalize: model is required")
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

// Normalize rewrites query into a normalized intent. The model's answer is
// returned verbatim apart from surrounding whitespace.
func (s *Service) Normalize(ctx context.Context, query string) (domain.NormalizedIntent, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query is empty", domain.ErrInvalidRequest)
	}

	req := domain.CompletionRequest{
		Model: s.cfg.Model,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: systemPrompt},
			{Role: domain.RoleUser, Content: query},
		},
		Temperature:      DefaultTemperature,
		TopP:             DefaultTopP,
		FrequencyPenalty: DefaultFrequencyPenalty,
		MaxTokens:        s.cfg.MaxTokens,
	}

	var intent string
	err := retry.Do(ctx, s.policy, func(ctx context.Context, _ int) error {
		resp, err := s.gen.Complete(ctx, req)
		if err != nil {
			return err //nolint:wrapcheck // wrapped once below
		}
		content := strings.TrimSpace(resp.Content)
		if content == "" {
			return fmt.Errorf("empty completion")
		}
		intent = content
		return nil
	}, s.onRetry)
	if err != nil {
		return "", fmt.Errorf("%w: normalize intent: %w", domain.ErrGeneration, err)
	}

	s.logger.Debug("Query normalized",
		zap.Int("query_len", len(query)),
		zap.Int("intent_len", len(intent)),
	)
	return domain.NormalizedIntent(intent), nil
}

func (s *Service) onRetry(attempt int, err error, wait time.Duration) {
	metrics.GenerationRetriesTotal.WithLabelValues("normalize").Inc()
	s.logger.Warn("Normalize attempt failed, retrying",
		zap.Int("attempt", attempt),
		zap.Duration("wait", wait),
		zap.Error(err),
	)
}

// ComposeQuery joins the user's words with an optional image-derived item
// description into the text that is normalized.
func ComposeQuery(query, itemDescription string) string {
	itemDescription = strings.TrimSpace(itemDescription)
	if itemDescription == "" {
		return query
	}
	return query + itemDescriptionLabel + itemDescription
}
