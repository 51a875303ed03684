package domain

import "context"

type usageKey struct{}

// Usage collects token usage for a single HTTP request.
// The handler puts a pointer into the context, services add to it,
// and the handler reports it in response headers.
type Usage struct {
	EmbeddingTokens  int
	GenerationTokens int
	Embedded         bool // true if the query was embedded, even on a cache hit
}

// NewContextWithUsage returns a context with an attached usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records tokens consumed by query embedding.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Embedded = true
	}
}

// AddGenerationTokens records prompt+completion tokens of a generative call.
func (u *Usage) AddGenerationTokens(n int) {
	if u != nil {
		u.GenerationTokens += n
	}
}
