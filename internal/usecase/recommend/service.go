// Package recommend runs the recommendation pipeline:
// normalize -> retrieve -> rerank.
package recommend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
	logpkg "github.com/kailas-cloud/lookbook/internal/logger"
	"github.com/kailas-cloud/lookbook/internal/metrics"
	"github.com/kailas-cloud/lookbook/internal/usecase/normalize"
	"github.com/kailas-cloud/lookbook/internal/usecase/rerank"
)

// Request is one recommendation query. Zero N and K take the service defaults.
type Request struct {
	Query           string
	ItemDescription string // optional image-derived description
	N               int
	K               int
}

// Service is the recommendation orchestrator.
type Service struct {
	normalizer Normalizer
	retriever  Retriever
	reranker   Reranker
	catalog    Catalog
	defaultN   int
	logger     *zap.Logger
}

// New creates the orchestrator. defaultN <= 0 selects rerank.DefaultN.
func New(
	normalizer Normalizer, retriever Retriever, reranker Reranker, catalog Catalog,
	defaultN int, logger *zap.Logger,
) *Service {
	if defaultN <= 0 {
		defaultN = rerank.DefaultN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		normalizer: normalizer,
		retriever:  retriever,
		reranker:   reranker,
		catalog:    catalog,
		defaultN:   defaultN,
		logger:     logger,
	}
}

// Recommend runs the three stages strictly in order. A failure is returned as
// a *domain.StageError naming the stage; no partial result is produced.
func (s *Service) Recommend(ctx context.Context, req Request) (domain.Recommendation, error) {
	n, k := req.N, req.K
	if n == 0 {
		n = s.defaultN
	}
	if n < 0 || k < 0 {
		return domain.Recommendation{}, fmt.Errorf("%w: n and k must be positive", domain.ErrInvalidRequest)
	}

	query := normalize.ComposeQuery(req.Query, req.ItemDescription)

	var intent domain.NormalizedIntent
	err := s.stage(ctx, domain.StageNormalize, func(ctx context.Context) error {
		var err error
		intent, err = s.normalizer.Normalize(ctx, query)
		return err //nolint:wrapcheck // attributed by stage
	})
	if err != nil {
		return domain.Recommendation{}, err
	}

	var cands []domain.Candidate
	err = s.stage(ctx, domain.StageRetrieve, func(ctx context.Context) error {
		var err error
		cands, err = s.retriever.Retrieve(ctx, intent, k)
		return err //nolint:wrapcheck // attributed by stage
	})
	if err != nil {
		return domain.Recommendation{}, err
	}

	var ids []int
	err = s.stage(ctx, domain.StageRerank, func(ctx context.Context) error {
		var err error
		ids, err = s.reranker.Rerank(ctx, intent, cands, n)
		return err //nolint:wrapcheck // attributed by stage
	})
	if err != nil {
		return domain.Recommendation{}, err
	}

	rec := domain.Recommendation{NormalizedIntent: intent, IDs: ids, Items: make([]domain.CatalogItem, 0, len(ids))}
	for _, id := range ids {
		item, ok := s.catalog.Item(id)
		if !ok {
			// Unreachable unless the retriever and the catalog disagree.
			return domain.Recommendation{}, domain.NewStageError(domain.StageRerank,
				fmt.Errorf("%w: id %d", domain.ErrItemNotFound, id))
		}
		rec.Items = append(rec.Items, item)
	}
	return rec, nil
}

// Normalize runs only the first stage. Used by callers that want to show the
// rewritten intent before searching.
func (s *Service) Normalize(ctx context.Context, query, itemDescription string) (domain.NormalizedIntent, error) {
	var intent domain.NormalizedIntent
	err := s.stage(ctx, domain.StageNormalize, func(ctx context.Context) error {
		var err error
		intent, err = s.normalizer.Normalize(ctx, normalize.ComposeQuery(query, itemDescription))
		return err //nolint:wrapcheck // attributed by stage
	})
	return intent, err
}

func (s *Service) stage(ctx context.Context, stage domain.Stage, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StageDuration.WithLabelValues(string(stage), outcome).Observe(elapsed.Seconds())

	log := logpkg.FromContext(ctx, s.logger)
	if err != nil {
		log.Warn("Pipeline stage failed",
			zap.String("stage", string(stage)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return domain.NewStageError(stage, err)
	}
	log.Debug("Pipeline stage done",
		zap.String("stage", string(stage)),
		zap.Duration("duration", elapsed),
	)
	return nil
}
