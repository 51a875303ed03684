package build

import (
	"context"

	"github.com/kailas-cloud/lookbook/internal/index"
)

// Source yields catalog descriptions; texts[i] becomes item id i.
type Source interface {
	Texts(ctx context.Context, limit int) ([]string, error)
}

// IndexBuilder embeds texts into an index.
type IndexBuilder interface {
	Build(ctx context.Context, texts []string) (*index.Index, index.BuildStats, error)
}
