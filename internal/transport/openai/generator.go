package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/metrics"
)

// DefaultGroqBaseURL is the OpenAI-compatible endpoint of Groq.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

// Generator performs chat completions against an OpenAI-compatible API.
// One Generator is built at start-up and shared by every request.
type Generator struct {
	client *openai.Client
	logger *zap.Logger
}

// GeneratorConfig holds the completion provider settings.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Logger  *zap.Logger
}

// NewGenerator creates a chat-completion client.
func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion provider: %w", domain.ErrMissingCredential)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = DefaultGroqBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger,
	}, nil
}

// Complete implements domain.Generator. It performs exactly one provider call;
// the caller owns retries and the per-attempt deadline carried by ctx.
func (g *Generator) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, toChatRequest(req))
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(req.Model, "error").Inc()
		g.logger.Debug("Chat completion failed",
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{}, parseAPIError(err, domain.ErrGeneration)
	}

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(req.Model, "empty").Inc()
		return domain.Completion{}, fmt.Errorf("no completion choices returned: %w", domain.ErrGeneration)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(req.Model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(req.Model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
	domain.UsageFromContext(ctx).AddGenerationTokens(resp.Usage.TotalTokens)

	g.logger.Debug("Chat completion completed",
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return domain.Completion{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func toChatRequest(req domain.CompletionRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:            req.Model,
		Messages:         make([]openai.ChatCompletionMessage, len(req.Messages)),
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		MaxTokens:        req.MaxTokens,
	}
	// go-openai drops a zero temperature (omitempty); the smallest positive
	// float keeps "greedy" on the wire.
	if out.Temperature == 0 {
		out.Temperature = math.SmallestNonzeroFloat32
	}
	if req.JSONMode {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	for i, m := range req.Messages {
		if m.ImageURL == "" {
			out.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
			continue
		}
		out.Messages[i] = openai.ChatCompletionMessage{
			Role: m.Role,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: m.Content},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: m.ImageURL}},
			},
		}
	}
	return out
}
