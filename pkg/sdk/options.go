package lookbook

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	indexDir string

	embedder            Embedder
	embeddingBaseURL    string
	embeddingKey        string
	embeddingModel      string
	embeddingDimensions int
	queryInstruction    string

	completionBaseURL string
	completionKey     string
	normalizeModel    string
	rerankModel       string
	captionModel      string
	attemptTimeout    time.Duration

	defaultN int
	defaultK int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithIndexDir sets the directory written by "lookbook build". Required.
func WithIndexDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexDir = dir
	})
}

// WithEmbedder sets a custom query embedder. It must produce vectors in the
// same space as the index. Overrides WithEmbeddingProvider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithEmbeddingProvider configures an OpenAI-compatible embeddings endpoint.
// model and dimensions are checked against the index manifest.
func WithEmbeddingProvider(baseURL, apiKey, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingBaseURL = baseURL
		c.embeddingKey = apiKey
		c.embeddingModel = model
		c.embeddingDimensions = dimensions
	})
}

// WithQueryInstruction prefixes every query before embedding, for models
// trained with asymmetric query instructions.
func WithQueryInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryInstruction = instruction
	})
}

// WithCompletionProvider configures an OpenAI-compatible chat completions
// endpoint used by normalization, reranking and image description. Required.
func WithCompletionProvider(baseURL, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.completionBaseURL = baseURL
		c.completionKey = apiKey
	})
}

// WithModels overrides the chat models. Empty values keep the defaults.
func WithModels(normalize, rerank, caption string) Option {
	return optionFunc(func(c *clientConfig) {
		if normalize != "" {
			c.normalizeModel = normalize
		}
		if rerank != "" {
			c.rerankModel = rerank
		}
		if caption != "" {
			c.captionModel = caption
		}
	})
}

// WithAttemptTimeout bounds every single model call. Default: 30s.
func WithAttemptTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.attemptTimeout = d
	})
}

// WithDefaults sets the result count n and candidate count k used when a
// call does not pass WithN / WithK. Defaults: 4 and 30.
func WithDefaults(n, k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultN = n
		c.defaultK = k
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// RecommendOption tunes a single Recommend call.
type RecommendOption func(*recommendConfig)

type recommendConfig struct {
	n               int
	k               int
	itemDescription string
}

// WithN sets how many items to return.
func WithN(n int) RecommendOption {
	return func(c *recommendConfig) { c.n = n }
}

// WithK sets how many candidates are retrieved before reranking.
func WithK(k int) RecommendOption {
	return func(c *recommendConfig) { c.k = k }
}

// WithItemDescription adds a description of an item the user already has,
// for example one returned by Describe.
func WithItemDescription(desc string) RecommendOption {
	return func(c *recommendConfig) { c.itemDescription = desc }
}
