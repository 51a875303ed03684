package budget

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/metrics"
	"github.com/kailas-cloud/lookbook/internal/retry"
)

// Generator charges every completion against a Tracker.
type Generator struct {
	inner   domain.Generator
	tracker *Tracker
}

// NewGenerator wraps gen with budget enforcement.
func NewGenerator(gen domain.Generator, tracker *Tracker) *Generator {
	return &Generator{inner: gen, tracker: tracker}
}

// Complete refuses the call when the budget is spent, otherwise delegates and
// records prompt plus completion tokens. A refusal is not retried.
func (g *Generator) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if err := g.tracker.Check(ctx); err != nil {
		metrics.GenerationBudgetRejectionsTotal.Inc()
		return domain.Completion{}, retry.Permanent(err)
	}
	resp, err := g.inner.Complete(ctx, req)
	if err != nil {
		return domain.Completion{}, err //nolint:wrapcheck // decorator is transparent
	}
	g.tracker.Record(int64(resp.PromptTokens + resp.CompletionTokens))
	return resp, nil
}

// HealthCheck forwards to the wrapped provider when it supports health checks.
func (g *Generator) HealthCheck(ctx context.Context) error {
	hc, ok := g.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("completion provider: %w", err)
	}
	return nil
}
