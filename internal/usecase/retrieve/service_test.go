package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

type mockSearcher struct {
	results  []domain.Candidate
	err      error
	lastText string
	lastK    int
	called   bool
}

func (m *mockSearcher) Search(_ context.Context, text string, k int) ([]domain.Candidate, error) {
	m.called = true
	m.lastText = text
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	if k < len(m.results) {
		return m.results[:k], nil
	}
	return m.results, nil
}

func TestRetrieve_PassesIntentAndK(t *testing.T) {
	s := &mockSearcher{results: []domain.Candidate{{ID: 1}, {ID: 0}, {ID: 2}}}
	svc := New(s, 0)

	got, err := svc.Retrieve(context.Background(), "I'm looking for a warm coat.", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.lastText != "I'm looking for a warm coat." || s.lastK != 2 {
		t.Errorf("unexpected search args: %q k=%d", s.lastText, s.lastK)
	}
	if len(got) != 2 || got[0].ID != 1 {
		t.Errorf("unexpected candidates: %+v", got)
	}
}

func TestRetrieve_DefaultK(t *testing.T) {
	s := &mockSearcher{}
	svc := New(s, 0)
	if svc.DefaultK() != DefaultK {
		t.Fatalf("expected default %d, got %d", DefaultK, svc.DefaultK())
	}
	if _, err := svc.Retrieve(context.Background(), "coat", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.lastK != DefaultK {
		t.Errorf("expected k=%d, got %d", DefaultK, s.lastK)
	}

	svc = New(s, 12)
	if _, err := svc.Retrieve(context.Background(), "coat", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.lastK != 12 {
		t.Errorf("expected configured k=12, got %d", s.lastK)
	}
}

func TestRetrieve_InvalidInput(t *testing.T) {
	s := &mockSearcher{}
	svc := New(s, 0)

	if _, err := svc.Retrieve(context.Background(), " ", 5); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty intent, got %v", err)
	}
	if _, err := svc.Retrieve(context.Background(), "coat", -1); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for negative k, got %v", err)
	}
	if s.called {
		t.Error("searcher must not be called for invalid input")
	}
}

func TestRetrieve_SearchError(t *testing.T) {
	s := &mockSearcher{err: domain.ErrEmbeddingProviderError}
	_, err := New(s, 0).Retrieve(context.Background(), "coat", 5)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}
