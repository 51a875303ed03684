// Package build is the offline index build job: read the catalog, embed it,
// and persist the index directory.
package build

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/index"
)

// Result reports a finished build.
type Result struct {
	Dir     string
	BuildID string
	Stats   index.BuildStats
}

// Service runs index builds.
type Service struct {
	builder IndexBuilder
	logger  *zap.Logger
}

// New creates a build job runner.
func New(builder IndexBuilder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{builder: builder, logger: logger}
}

// Run reads up to limit texts from src (0 = all), builds the index and saves
// it to dir, replacing any previous index there.
func (s *Service) Run(ctx context.Context, src Source, dir string, limit int) (Result, error) {
	texts, err := src.Texts(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read catalog: %w", domain.ErrBuild, err)
	}
	s.logger.Info("Catalog loaded", zap.Int("items", len(texts)))

	idx, stats, err := s.builder.Build(ctx, texts)
	if err != nil {
		return Result{Stats: stats}, err //nolint:wrapcheck // already ErrBuild
	}
	if err := index.Save(idx, dir); err != nil {
		return Result{Stats: stats}, err //nolint:wrapcheck // already ErrBuild
	}

	s.logger.Info("Index saved",
		zap.String("dir", dir),
		zap.String("build_id", idx.Meta().BuildID),
		zap.Int("items", idx.Len()),
	)
	return Result{Dir: dir, BuildID: idx.Meta().BuildID, Stats: stats}, nil
}
