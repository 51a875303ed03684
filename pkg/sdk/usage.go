package lookbook

import (
	"context"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// Usage reports provider tokens consumed by one call.
type Usage struct {
	EmbeddingTokens  int
	GenerationTokens int
}

// withUsage attaches a collector that internal services add token counts to.
func withUsage(ctx context.Context) (context.Context, func() Usage) {
	ctx, u := domain.NewContextWithUsage(ctx)
	return ctx, func() Usage {
		return Usage{EmbeddingTokens: u.EmbeddingTokens, GenerationTokens: u.GenerationTokens}
	}
}
