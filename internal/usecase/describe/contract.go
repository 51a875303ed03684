package describe

import (
	"context"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// Generator performs a single (multimodal) chat completion.
type Generator interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}
