package index

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/metrics"
)

// Builder defaults.
const (
	DefaultBatchSize = 64
	DefaultWorkers   = 4
)

// BuilderConfig tunes an index build.
type BuilderConfig struct {
	Model      string  // recorded in the manifest; must match the query embedder
	Dimensions int     // expected vector size, 0 = take it from the lowest surviving id
	Metric     Metric  // similarity metric, Cosine when empty
	BatchSize  int     // texts per provider call
	Workers    int     // concurrent provider calls
	RateLimit  float64 // provider calls per second, 0 = unlimited
}

// BuildStats summarizes a build.
type BuildStats struct {
	Total    int
	Embedded int
	Skipped  int
	Duration time.Duration
}

// Builder embeds catalog descriptions into a new Index.
type Builder struct {
	embedder domain.Embedder
	cfg      BuilderConfig
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewBuilder creates an index builder. embedder should be the bare document
// embedder: bge-style query instructions are not applied to catalog text.
func NewBuilder(embedder domain.Embedder, cfg BuilderConfig, logger *zap.Logger) (*Builder, error) {
	metric, err := ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}
	cfg.Metric = metric
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		embedder: embedder,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.Workers),
		logger:   logger,
	}, nil
}

// Build embeds texts and returns the resulting Index. texts[i] gets id i.
// Blank texts and texts the provider fails to embed are skipped and logged;
// the build fails with domain.ErrBuild only when nothing survives or ctx ends.
func (b *Builder) Build(ctx context.Context, texts []string) (*Index, BuildStats, error) {
	start := time.Now()
	stats := BuildStats{Total: len(texts)}

	positions := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			b.skip(i, "blank description", nil)
			continue
		}
		positions = append(positions, i)
	}

	vectors := make([][]float32, len(texts))
	var skipped atomic.Int64
	skipped.Add(int64(len(texts) - len(positions)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for off := 0; off < len(positions); off += b.cfg.BatchSize {
		end := min(off+b.cfg.BatchSize, len(positions))
		batch := positions[off:end]
		g.Go(func() error {
			return b.embedBatch(gctx, texts, batch, vectors, &skipped)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, fmt.Errorf("%w: %w", domain.ErrBuild, err)
	}

	items, kept := b.collect(texts, vectors, &skipped)
	stats.Skipped = int(skipped.Load())
	stats.Embedded = len(items)
	stats.Duration = time.Since(start)
	metrics.IndexBuildItemsTotal.WithLabelValues("embedded").Add(float64(stats.Embedded))
	metrics.IndexBuildItemsTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))

	if len(items) == 0 {
		return nil, stats, fmt.Errorf("%w: no documents survived embedding (%d inputs)", domain.ErrBuild, len(texts))
	}

	idx, err := New(items, kept, b.cfg.Metric, Meta{
		BuildID:   uuid.NewString(),
		Model:     b.cfg.Model,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %w", domain.ErrBuild, err)
	}

	b.logger.Info("Index built",
		zap.String("build_id", idx.Meta().BuildID),
		zap.Int("total", stats.Total),
		zap.Int("embedded", stats.Embedded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("dimensions", idx.Dim()),
		zap.Duration("duration", stats.Duration),
	)
	return idx, stats, nil
}

// embedBatch fills vectors for positions. A failed batch call degrades to one
// call per text so a single bad document only skips itself.
func (b *Builder) embedBatch(
	ctx context.Context, texts []string, positions []int, vectors [][]float32, skipped *atomic.Int64,
) error {
	batch := make([]string, len(positions))
	for i, p := range positions {
		batch[i] = texts[p]
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	res, err := domain.EmbedAll(ctx, b.embedder, batch)
	if err == nil {
		for i, p := range positions {
			b.store(p, res.Embeddings[i], vectors, skipped)
		}
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err() //nolint:wrapcheck // cancellation is reported as-is
	}

	b.logger.Warn("Batch embedding failed, retrying items one by one",
		zap.Int("first_id", positions[0]),
		zap.Int("batch_size", len(positions)),
		zap.Error(err),
	)
	for _, p := range positions {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		one, err := b.embedder.Embed(ctx, texts[p])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() //nolint:wrapcheck // cancellation is reported as-is
			}
			b.skip(p, "embedding failed", err)
			skipped.Add(1)
			continue
		}
		b.store(p, one.Embedding, vectors, skipped)
	}
	return nil
}

// store records v for position p. A provider that answers without a vector
// skips the item like a failed call.
func (b *Builder) store(p int, v []float32, vectors [][]float32, skipped *atomic.Int64) {
	if len(v) == 0 {
		b.skip(p, "empty vector", nil)
		skipped.Add(1)
		return
	}
	vectors[p] = v
}

// collect keeps embedded texts in id order and drops vectors whose dimension
// disagrees with the configured (or lowest-id) dimension.
func (b *Builder) collect(texts []string, vectors [][]float32, skipped *atomic.Int64) ([]domain.CatalogItem, [][]float32) {
	dim := b.cfg.Dimensions
	items := make([]domain.CatalogItem, 0, len(texts))
	kept := make([][]float32, 0, len(texts))
	for i, v := range vectors {
		if v == nil {
			// blank, failed or empty: already counted
			continue
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			b.skip(i, "unexpected vector dimension", fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(v), dim))
			skipped.Add(1)
			continue
		}
		items = append(items, domain.CatalogItem{ID: i, Description: texts[i]})
		kept = append(kept, v)
	}
	return items, kept
}

func (b *Builder) skip(id int, reason string, err error) {
	fields := []zap.Field{zap.Int("id", id), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	b.logger.Warn("Skipping catalog item", fields...)
}
