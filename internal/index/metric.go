package index

import (
	"fmt"
	"math"
)

// Metric is the similarity function of an index. Larger scores are closer.
type Metric string

// Supported metrics.
const (
	Cosine       Metric = "cosine"
	InnerProduct Metric = "inner_product"
)

// ParseMetric validates a metric name. Empty selects Cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", Cosine:
		return Cosine, nil
	case InnerProduct:
		return InnerProduct, nil
	default:
		return "", fmt.Errorf("unknown metric %q (want %q or %q)", s, Cosine, InnerProduct)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
