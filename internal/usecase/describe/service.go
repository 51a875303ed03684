// Package describe turns a product photo into structured fashion metadata
// that can be appended to a shopping query.
package describe

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/metrics"
	"github.com/kailas-cloud/lookbook/internal/retry"
)

// Captioning defaults.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 400
	DefaultAttempts    = 3
	// MaxImageBytes bounds inline images.
	MaxImageBytes = 8 << 20
)

const prompt = `You are a professional fashion analysis assistant. Your task is to extract concise and structured metadata from fashion product images.

Output format:
- Product Type:
- Gender Target:
- Color(s):
- Fabric or Material:
- Style or Cut:
- Pattern:
- Notable Features (e.g., buttons, zippers, embroidery, logos):
- Collar / Neckline Type:
- Sleeve Type:
- Fit (e.g., slim, oversized):

Rules and tone:
- Assume the image is clear and detailed.
- Describe exactly what you see. Do not speculate.
- Do not use conditional phrases like "if visible" or "appears to".
- Use professional fashion terminology.
- Be confident, direct, and structured.`

// Image is either a remote URL or raw image bytes.
type Image struct {
	URL   string
	Bytes []byte
}

// Config holds captioner settings.
type Config struct {
	Model          string
	MaxTokens      int
	Attempts       int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// Service is the image captioner.
type Service struct {
	gen    Generator
	cfg    Config
	policy retry.Policy
	logger *zap.Logger
}

// New creates an image captioner.
func New(gen Generator, cfg Config, logger *zap.Logger) (*Service, error) {
	if gen == nil {
		return nil, fmt.Errorf("describe: generator is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("describe: model is required")
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
			AttemptTimeout: cfg.AttemptTimeout,
			Jitter:         true,
		},
		logger: logger,
	}, nil
}

// Describe returns structured metadata for the garment in img.
func (s *Service) Describe(ctx context.Context, img Image) (string, error) {
	imageURL, err := imageURLOf(img)
	if err != nil {
		return "", err
	}

	req := domain.CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    []domain.Message{{Role: domain.RoleUser, Content: prompt, ImageURL: imageURL}},
		Temperature: DefaultTemperature,
		MaxTokens:   s.cfg.MaxTokens,
	}

	var description string
	err = retry.Do(ctx, s.policy, func(ctx context.Context, _ int) error {
		resp, err := s.gen.Complete(ctx, req)
		if err != nil {
			return err //nolint:wrapcheck // wrapped once below
		}
		description = strings.TrimSpace(resp.Content)
		if description == "" {
			return fmt.Errorf("empty completion")
		}
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		metrics.GenerationRetriesTotal.WithLabelValues("describe").Inc()
		s.logger.Warn("Describe attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrCaption, err)
	}
	return description, nil
}

// imageURLOf validates img and returns what the model should fetch: the URL
// itself, or the bytes inlined as a base64 data URL.
func imageURLOf(img Image) (string, error) {
	switch {
	case img.URL != "" && len(img.Bytes) > 0:
		return "", fmt.Errorf("%w: pass either an image URL or image bytes, not both", domain.ErrInvalidRequest)
	case img.URL != "":
		u, err := url.Parse(img.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", fmt.Errorf("%w: image URL must be absolute http(s)", domain.ErrInvalidRequest)
		}
		return img.URL, nil
	case len(img.Bytes) > 0:
		if len(img.Bytes) > MaxImageBytes {
			return "", fmt.Errorf("%w: image is %d bytes, limit %d", domain.ErrInvalidRequest, len(img.Bytes), MaxImageBytes)
		}
		mime := http.DetectContentType(img.Bytes)
		if !strings.HasPrefix(mime, "image/") {
			return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrInvalidRequest, mime)
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Bytes), nil
	default:
		return "", fmt.Errorf("%w: image is required", domain.ErrInvalidRequest)
	}
}
