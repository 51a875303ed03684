package health

import (
	"context"

	"github.com/kailas-cloud/lookbook/internal/index"
)

// IndexInfo exposes the loaded embedding index.
type IndexInfo interface {
	Len() int
	Meta() index.Meta
}

// CachePinger checks embedding cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks embedding or generation provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
