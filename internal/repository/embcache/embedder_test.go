package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/lookbook/internal/db"
	"github.com/kailas-cloud/lookbook/internal/domain"
)

type mockEmbedder struct {
	result    domain.EmbeddingResult
	err       error
	calls     int
	healthErr error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEmbedder) HealthCheck(_ context.Context) error { return m.healthErr }

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	delFn func(ctx context.Context, key string) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockKVStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func newCacheCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
}

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 7}}
	ms := &mockKVStore{}
	var (
		storedKey string
		storedTTL time.Duration
		stored    []byte
	)
	ms.setFn = func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		storedKey, stored, storedTTL = key, value, ttl
		return nil
	}
	counter := newCacheCounter()
	ce := New(inner, ms, Config{Model: "bge", TTL: time.Hour}, counter, nil)

	result, err := ce.Embed(context.Background(), "warm coat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalTokens != 7 || len(result.Embedding) != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.HasPrefix(storedKey, DefaultKeyPrefix+"bge:") {
		t.Errorf("key must be namespaced by model, got %q", storedKey)
	}
	if storedTTL != time.Hour {
		t.Errorf("expected TTL 1h, got %v", storedTTL)
	}
	if vec, _ := bytesToVector(stored); len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("unexpected stored vector %v", vec)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{}
	ms := &mockKVStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
		return vectorToCacheBytes([]float32{0.4, 0.5, 0.6}), nil
	}}
	counter := newCacheCounter()
	ce := New(inner, ms, Config{Model: "bge"}, counter, nil)

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Errorf("inner must not be called on a hit, got %d calls", inner.calls)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
}

func TestEmbed_DifferentModelsDifferentKeys(t *testing.T) {
	var keys []string
	ms := &mockKVStore{setFn: func(_ context.Context, key string, _ []byte, _ time.Duration) error {
		keys = append(keys, key)
		return nil
	}}
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	_, _ = New(inner, ms, Config{Model: "a"}, nil, nil).Embed(context.Background(), "same")
	_, _ = New(inner, ms, Config{Model: "b"}, nil, nil).Embed(context.Background(), "same")
	if len(keys) != 2 || keys[0] == keys[1] {
		t.Errorf("expected distinct keys per model, got %v", keys)
	}
}

func TestEmbed_StoreErrorsDegradeToMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ms := &mockKVStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) { return nil, errors.New("connection refused") },
		setFn: func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
			return errors.New("connection refused")
		},
	}
	result, err := New(inner, ms, Config{}, nil, nil).Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("cache failures must not fail the request: %v", err)
	}
	if inner.calls != 1 || len(result.Embedding) != 1 {
		t.Errorf("expected fallthrough to inner, got %d calls", inner.calls)
	}
}

func TestEmbed_CorruptCacheEntry(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	var evicted []string
	ms := &mockKVStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) { return []byte{1, 2, 3}, nil },
		delFn: func(_ context.Context, key string) error {
			evicted = append(evicted, key)
			return nil
		},
	}
	ce := New(inner, ms, Config{Model: "bge"}, nil, nil)
	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("corrupt entries must be treated as a miss")
	}
	if len(evicted) != 1 || evicted[0] != ce.cacheKey("x") {
		t.Errorf("expected the corrupt key to be evicted, got %v", evicted)
	}
}

func TestEmbed_EvictionFailureStillEmbeds(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ms := &mockKVStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) { return []byte{1}, nil },
		delFn: func(_ context.Context, _ string) error { return errors.New("connection refused") },
	}
	result, err := New(inner, ms, Config{}, nil, nil).Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("eviction failures must not fail the request: %v", err)
	}
	if inner.calls != 1 || len(result.Embedding) != 1 {
		t.Errorf("expected fallthrough to inner, got %d calls", inner.calls)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	if _, err := New(inner, &mockKVStore{}, Config{}, nil, nil).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error from inner embedder")
	}
}

func TestHealthCheck_Forwarded(t *testing.T) {
	inner := &mockEmbedder{healthErr: errors.New("down")}
	if err := New(inner, &mockKVStore{}, Config{}, nil, nil).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected forwarded health error")
	}
}

func TestBytesToVector_RoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: %v vs %v", i, out[i], in[i])
		}
	}
}
