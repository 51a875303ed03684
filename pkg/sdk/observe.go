package lookbook

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	tokens     *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookbook",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lookbook",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookbook",
			Subsystem: "sdk",
			Name:      "tokens_total",
			Help:      "Provider tokens consumed by SDK operations.",
		}, []string{"operation", "kind"}), // kind: "embedding" / "generation"
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.tokens); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an identical one already
// registered, so several Clients can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("lookbook: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("lookbook: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(op string, start time.Time, usage Usage, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
		if usage.EmbeddingTokens > 0 {
			o.metrics.tokens.WithLabelValues(op, "embedding").Add(float64(usage.EmbeddingTokens))
		}
		if usage.GenerationTokens > 0 {
			o.metrics.tokens.WithLabelValues(op, "generation").Add(float64(usage.GenerationTokens))
		}
	}

	if o.logger == nil {
		return
	}
	attrs := []any{
		"op", op,
		"duration", dur,
		"embedding_tokens", usage.EmbeddingTokens,
		"generation_tokens", usage.GenerationTokens,
	}
	if err != nil {
		if stage, ok := StageOf(err); ok {
			attrs = append(attrs, "stage", stage)
		}
		o.logger.Warn("operation failed", append(attrs, "error", err)...)
		return
	}
	o.logger.Debug("operation completed", attrs...)
}
