// Package index is the embedding index store: catalog descriptions, their
// vectors, exact k-nearest-neighbour search, and on-disk persistence.
//
// An Index is immutable once constructed. Any number of goroutines may search
// it concurrently without locking.
package index

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// Meta describes how an index was produced.
type Meta struct {
	BuildID   string
	Model     string
	CreatedAt time.Time
}

// Index holds catalog items and one vector per item.
type Index struct {
	items   []domain.CatalogItem
	vectors [][]float32
	norms   []float64
	byID    map[int]int
	dim     int
	metric  Metric
	meta    Meta
}

// New validates items and vectors and assembles an Index.
// items[i] owns vectors[i]; ids must be unique and non-negative and every
// vector must have the same, non-zero dimension.
func New(items []domain.CatalogItem, vectors [][]float32, metric Metric, meta Meta) (*Index, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("index must contain at least one item")
	}
	if len(items) != len(vectors) {
		return nil, fmt.Errorf("%d items but %d vectors", len(items), len(vectors))
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("item %d has an empty vector", items[0].ID)
	}

	idx := &Index{
		items:   items,
		vectors: vectors,
		norms:   make([]float64, len(vectors)),
		byID:    make(map[int]int, len(items)),
		dim:     dim,
		metric:  metric,
		meta:    meta,
	}
	for i, it := range items {
		if it.ID < 0 {
			return nil, fmt.Errorf("item id %d is negative", it.ID)
		}
		if _, dup := idx.byID[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %d", it.ID)
		}
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("item %d: %w: got %d, want %d",
				it.ID, domain.ErrVectorDimMismatch, len(vectors[i]), dim)
		}
		idx.byID[it.ID] = i
		idx.norms[i] = norm(vectors[i])
	}
	return idx, nil
}

// Len returns the number of items.
func (x *Index) Len() int { return len(x.items) }

// Dim returns the vector dimension.
func (x *Index) Dim() int { return x.dim }

// Metric returns the similarity metric.
func (x *Index) Metric() Metric { return x.metric }

// Meta returns build metadata.
func (x *Index) Meta() Meta { return x.meta }

// Item returns the catalog item with the given id.
func (x *Index) Item(id int) (domain.CatalogItem, bool) {
	i, ok := x.byID[id]
	if !ok {
		return domain.CatalogItem{}, false
	}
	return x.items[i], true
}

// Items returns a copy of all items in storage order (ascending id for built indexes).
func (x *Index) Items() []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(x.items))
	copy(out, x.items)
	return out
}

// Vector returns a copy of the vector stored for id.
func (x *Index) Vector(id int) ([]float32, bool) {
	i, ok := x.byID[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, x.dim)
	copy(out, x.vectors[i])
	return out, true
}

// CheckModel verifies that queries embedded by model with dims dimensions
// land in this index's embedding space. Empty model / zero dims skip the check.
func (x *Index) CheckModel(model string, dims int) error {
	if model != "" && x.meta.Model != "" && model != x.meta.Model {
		return fmt.Errorf("%w: index built with model %q, query embedder uses %q",
			domain.ErrLoad, x.meta.Model, model)
	}
	if dims > 0 && dims != x.dim {
		return fmt.Errorf("%w: index has %d dimensions, query embedder produces %d",
			domain.ErrLoad, x.dim, dims)
	}
	return nil
}
