package lookbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/config"
	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/index"
	openaiTransport "github.com/kailas-cloud/lookbook/internal/transport/openai"
	describeuc "github.com/kailas-cloud/lookbook/internal/usecase/describe"
	healthuc "github.com/kailas-cloud/lookbook/internal/usecase/health"
	"github.com/kailas-cloud/lookbook/internal/usecase/normalize"
	recommenduc "github.com/kailas-cloud/lookbook/internal/usecase/recommend"
	"github.com/kailas-cloud/lookbook/internal/usecase/rerank"
	"github.com/kailas-cloud/lookbook/internal/usecase/retrieve"
)

const defaultAttemptTimeout = 30 * time.Second

// Internal interfaces, swapped for mocks in tests.
type recommendUseCase interface {
	Recommend(ctx context.Context, req recommenduc.Request) (domain.Recommendation, error)
	Normalize(ctx context.Context, query, itemDescription string) (domain.NormalizedIntent, error)
}

type describeUseCase interface {
	Describe(ctx context.Context, img describeuc.Image) (string, error)
}

type catalog interface {
	Item(id int) (domain.CatalogItem, bool)
	Len() int
	Dim() int
	Meta() index.Meta
}

// Client is the lookbook SDK entry point. It is safe for concurrent use.
type Client struct {
	catalog   catalog
	recSvc    recommendUseCase
	descSvc   describeUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New loads the index and wires the pipeline. No network call is made.
func New(opts ...Option) (*Client, error) {
	// Model defaults follow the service configuration.
	var defaults config.Config
	defaults.ApplyDefaults()

	cfg := &clientConfig{
		normalizeModel: defaults.LLM.Normalize.Model,
		rerankModel:    defaults.LLM.Rerank.Model,
		captionModel:   defaults.LLM.Caption.Model,
		attemptTimeout: defaultAttemptTimeout,
		defaultN:       defaults.Recommend.DefaultN,
		defaultK:       defaults.Recommend.DefaultK,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.indexDir == "" {
		return nil, errors.New("lookbook: index directory required (use WithIndexDir)")
	}
	if cfg.embedder == nil && cfg.embeddingBaseURL == "" && cfg.embeddingKey == "" {
		return nil, errors.New("lookbook: query embedder required (use WithEmbeddingProvider or WithEmbedder)")
	}

	idx, err := index.Load(cfg.indexDir)
	if err != nil {
		return nil, fmt.Errorf("lookbook: %w", err)
	}

	emb, err := buildEmbedder(cfg, idx)
	if err != nil {
		return nil, err
	}

	gen, err := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:  cfg.completionKey,
		BaseURL: cfg.completionBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("lookbook: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(idx, emb, gen, cfg, obs)
}

func buildEmbedder(cfg *clientConfig, idx *index.Index) (domain.Embedder, error) {
	var emb domain.Embedder
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	} else {
		if err := idx.CheckModel(cfg.embeddingModel, cfg.embeddingDimensions); err != nil {
			return nil, fmt.Errorf("lookbook: %w", err)
		}
		model := cfg.embeddingModel
		if model == "" {
			model = idx.Meta().Model
		}
		base, err := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.embeddingKey,
			BaseURL:    cfg.embeddingBaseURL,
			Model:      model,
			Dimensions: cfg.embeddingDimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("lookbook: %w", err)
		}
		emb = base
	}
	if cfg.queryInstruction != "" {
		emb = domain.NewInstructionEmbedder(emb, cfg.queryInstruction)
	}
	return emb, nil
}

func wireClient(idx *index.Index, emb domain.Embedder, gen domain.Generator, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := zap.NewNop()

	normalizer, err := normalize.New(gen, normalize.Config{
		Model:          cfg.normalizeModel,
		AttemptTimeout: cfg.attemptTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("lookbook: %w", err)
	}
	reranker, err := rerank.New(gen, rerank.Config{
		Model:          cfg.rerankModel,
		AttemptTimeout: cfg.attemptTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("lookbook: %w", err)
	}
	describer, err := describeuc.New(gen, describeuc.Config{
		Model:          cfg.captionModel,
		AttemptTimeout: cfg.attemptTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("lookbook: %w", err)
	}

	retriever := retrieve.New(index.NewSearcher(idx, emb), cfg.defaultK)
	deps := healthuc.Deps{Index: idx}
	if hc, ok := emb.(domain.HealthChecker); ok {
		deps.Embedding = hc
	}
	if hc, ok := gen.(domain.HealthChecker); ok {
		deps.Generation = hc
	}

	return &Client{
		catalog:   idx,
		recSvc:    recommenduc.New(normalizer, retriever, reranker, idx, cfg.defaultN, logger),
		descSvc:   describer,
		healthSvc: healthuc.New(deps),
		obs:       obs,
	}, nil
}

// Recommend runs normalize, retrieve and rerank for query.
func (c *Client) Recommend(ctx context.Context, query string, opts ...RecommendOption) (rec Recommendation, err error) {
	start := time.Now()
	ctx, usage := withUsage(ctx)
	defer func() {
		rec.Usage = usage()
		c.obs.observe("recommend", start, rec.Usage, err)
	}()

	var rc recommendConfig
	for _, o := range opts {
		o(&rc)
	}
	res, err := c.recSvc.Recommend(ctx, recommenduc.Request{
		Query:           query,
		ItemDescription: rc.itemDescription,
		N:               rc.n,
		K:               rc.k,
	})
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommend: %w", err)
	}

	items := make([]Item, len(res.Items))
	for i, it := range res.Items {
		items[i] = Item{ID: it.ID, Description: it.Description}
	}
	return Recommendation{NormalizedIntent: res.NormalizedIntent.String(), Items: items}, nil
}

// Normalize returns the normalized intent for query without searching.
func (c *Client) Normalize(ctx context.Context, query string) (intent string, err error) {
	start := time.Now()
	ctx, usage := withUsage(ctx)
	defer func() { c.obs.observe("normalize", start, usage(), err) }()

	res, err := c.recSvc.Normalize(ctx, query, "")
	if err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}
	return res.String(), nil
}

// Describe extracts a structured item description from a garment image.
func (c *Client) Describe(ctx context.Context, img Image) (desc string, err error) {
	start := time.Now()
	ctx, usage := withUsage(ctx)
	defer func() { c.obs.observe("describe", start, usage(), err) }()

	desc, err = c.descSvc.Describe(ctx, describeuc.Image{URL: img.URL, Bytes: img.Bytes})
	if err != nil {
		return "", fmt.Errorf("describe: %w", err)
	}
	return desc, nil
}

// Item returns the catalog item with id.
func (c *Client) Item(id int) (Item, error) {
	it, ok := c.catalog.Item(id)
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", id, ErrItemNotFound)
	}
	return Item{ID: it.ID, Description: it.Description}, nil
}

// Index describes the loaded index.
func (c *Client) Index() IndexInfo {
	meta := c.catalog.Meta()
	return IndexInfo{
		BuildID:    meta.BuildID,
		Model:      meta.Model,
		Items:      c.catalog.Len(),
		Dimensions: c.catalog.Dim(),
	}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
