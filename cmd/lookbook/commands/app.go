package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/config"
	"github.com/kailas-cloud/lookbook/internal/db"
	dbRedis "github.com/kailas-cloud/lookbook/internal/db/redis"
	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/index"
	logpkg "github.com/kailas-cloud/lookbook/internal/logger"
	"github.com/kailas-cloud/lookbook/internal/metrics"
	budgetRepo "github.com/kailas-cloud/lookbook/internal/repository/budget"
	"github.com/kailas-cloud/lookbook/internal/repository/embcache"
	"github.com/kailas-cloud/lookbook/internal/transport/hfdatasets"
	openaiTransport "github.com/kailas-cloud/lookbook/internal/transport/openai"
	budgetuc "github.com/kailas-cloud/lookbook/internal/usecase/budget"
	describeuc "github.com/kailas-cloud/lookbook/internal/usecase/describe"
	embeddinguc "github.com/kailas-cloud/lookbook/internal/usecase/embedding"
	"github.com/kailas-cloud/lookbook/internal/usecase/normalize"
	recommenduc "github.com/kailas-cloud/lookbook/internal/usecase/recommend"
	"github.com/kailas-cloud/lookbook/internal/usecase/rerank"
	"github.com/kailas-cloud/lookbook/internal/usecase/retrieve"
)

// Provider names used in metrics, logs and budget keys.
const (
	embeddingProvider  = "openai-compatible"
	completionProvider = "completion"
)

// app is the loaded configuration plus the process logger.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func loadApp(opts *globalOptions) (*app, error) {
	env := opts.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()

	return &app{env: env, cfg: cfg, logger: logger}, nil
}

// baseEmbedder creates the provider client wrapped with metrics.
func (a *app) baseEmbedder() (*embeddinguc.InstrumentedEmbedder, error) {
	key, err := a.cfg.Embedding.ResolveAPIKey()
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	base, err := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     key,
		BaseURL:    a.cfg.Embedding.BaseURL,
		Model:      a.cfg.Embedding.Model,
		Dimensions: a.cfg.Embedding.Dimensions,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // already prefixed by the provider
	}
	return embeddinguc.NewInstrumentedEmbedder(base, embeddingProvider, a.cfg.Embedding.Model, a.logger).
		WithMaxBatchSize(a.cfg.Embedding.BatchSize), nil
}

// queryEmbedder assembles the decorator chain used at query time:
// provider -> instrumented -> cached -> instruction. Cache hits skip the
// provider metrics; the instruction prefix is outermost so cache keys include it.
// store must be a nil interface, not a typed nil, when the cache is disabled.
func (a *app) queryEmbedder(store db.KVStore) (domain.Embedder, error) {
	base, err := a.baseEmbedder()
	if err != nil {
		return nil, err
	}

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, embcache.Config{
			Model:     a.cfg.Embedding.Model,
			KeyPrefix: a.cfg.Cache.KeyPrefix,
			TTL:       time.Duration(a.cfg.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, a.logger)
	}

	if a.cfg.Embedding.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, a.cfg.Embedding.QueryInstruction), nil
	}
	return embedder, nil
}

// openCache connects the optional embedding cache. Returns nil, nil when disabled.
func (a *app) openCache(ctx context.Context) (*dbRedis.Store, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    a.cfg.Cache.Addrs,
		Username: a.cfg.Cache.Username,
		Password: a.cfg.Cache.Password,
		DB:       a.cfg.Cache.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}
	timeout := time.Duration(a.cfg.Cache.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	a.logger.Info("Connected to embedding cache", zap.Strings("addrs", a.cfg.Cache.Addrs))
	return store, nil
}

// generator builds the completion client behind the token budget. counters
// persists the budget and may be nil.
func (a *app) generator(ctx context.Context, counters db.CounterStore) (*budgetuc.Generator, *budgetuc.Tracker, error) {
	key, err := a.cfg.LLM.ResolveAPIKey()
	if err != nil {
		return nil, nil, fmt.Errorf("completion provider: %w", err)
	}
	gen, err := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:  key,
		BaseURL: a.cfg.LLM.BaseURL,
		Logger:  a.logger,
	})
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // prefixed by the provider
	}

	b := a.cfg.LLM.Budget
	tracker := budgetuc.NewTracker(budgetuc.Config{
		Provider:     completionProvider,
		DailyLimit:   b.DailyTokens,
		MonthlyLimit: b.MonthlyTokens,
		Action:       budgetuc.Action(b.Action),
		KeyPrefix:    b.KeyPrefix,
	}, a.logger)
	if counters != nil {
		tracker.WithStore(ctx, budgetRepo.New(counters, 48*time.Hour, 62*24*time.Hour))
	}
	return budgetuc.NewGenerator(gen, tracker), tracker, nil
}

// loadIndex reads the persisted index and checks it against the configured
// embedding model so queries and items share one vector space.
func (a *app) loadIndex() (*index.Index, error) {
	idx, err := index.Load(a.cfg.Index.Dir)
	if err != nil {
		return nil, fmt.Errorf("load index from %s: %w", a.cfg.Index.Dir, err)
	}
	if err := idx.CheckModel(a.cfg.Embedding.Model, a.cfg.Embedding.Dimensions); err != nil {
		return nil, err //nolint:wrapcheck // carries ErrLoad with detail
	}
	meta := idx.Meta()
	a.logger.Info("Index loaded",
		zap.String("dir", a.cfg.Index.Dir),
		zap.Int("items", idx.Len()),
		zap.Int("dimensions", idx.Dim()),
		zap.String("build_id", meta.BuildID),
		zap.String("model", meta.Model),
		zap.Time("created_at", meta.CreatedAt),
	)
	return idx, nil
}

// pipeline wires normalize -> retrieve -> rerank over idx.
func (a *app) pipeline(idx *index.Index, embedder domain.Embedder, gen domain.Generator) (*recommenduc.Service, error) {
	attemptTimeout := time.Duration(a.cfg.LLM.TimeoutSec) * time.Second

	n := a.cfg.LLM.Normalize
	normalizer, err := normalize.New(gen, normalize.Config{
		Model:          n.Model,
		MaxTokens:      n.MaxTokens,
		Attempts:       n.Attempts,
		BaseDelay:      time.Duration(n.BaseDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(n.MaxDelayMs) * time.Millisecond,
		AttemptTimeout: attemptTimeout,
	}, a.logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // prefixed by the package
	}

	r := a.cfg.LLM.Rerank
	reranker, err := rerank.New(gen, rerank.Config{
		Model:          r.Model,
		MaxTokens:      r.MaxTokens,
		Attempts:       r.Attempts,
		BaseDelay:      time.Duration(r.BaseDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(r.MaxDelayMs) * time.Millisecond,
		AttemptTimeout: attemptTimeout,
	}, a.logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // prefixed by the package
	}

	retriever := retrieve.New(index.NewSearcher(idx, embedder), a.cfg.Recommend.DefaultK)
	return recommenduc.New(normalizer, retriever, reranker, idx, a.cfg.Recommend.DefaultN, a.logger), nil
}

func (a *app) describer(gen domain.Generator) (*describeuc.Service, error) {
	c := a.cfg.LLM.Caption
	return describeuc.New(gen, describeuc.Config{ //nolint:wrapcheck // prefixed by the package
		Model:          c.Model,
		MaxTokens:      c.MaxTokens,
		Attempts:       c.Attempts,
		BaseDelay:      time.Duration(c.BaseDelayMs) * time.Millisecond,
		AttemptTimeout: time.Duration(a.cfg.LLM.TimeoutSec) * time.Second,
	}, a.logger)
}

func (a *app) dataset() *hfdatasets.Client {
	c := a.cfg.Catalog
	return hfdatasets.New(hfdatasets.Config{
		BaseURL:     c.BaseURL,
		Dataset:     c.Dataset,
		Config:      c.Config,
		Split:       c.Split,
		TextColumn:  c.TextColumn,
		ImageColumn: c.ImageColumn,
		Token:       c.Token,
		Timeout:     time.Duration(c.TimeoutSec) * time.Second,
		RateLimit:   c.RateLimit,
		Logger:      a.logger,
	})
}
