package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchResult BatchEmbeddingResult
	batchErr    error
	batchTexts  []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batchResult, s.batchErr
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "Represent this sentence: ")

	result, err := emb.Embed(context.Background(), "black wool coat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "Represent this sentence: black wool coat" {
		t.Errorf("expected prepended text, got %q", inner.got[0])
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "q: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedAll_UsesBatchWhenAvailable(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{
		Embeddings:  [][]float32{{0.1}, {0.2}},
		TotalTokens: 20,
	}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 20 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(inner.got) != 0 {
		t.Errorf("single Embed should not be called, got %v", inner.got)
	}
}

func TestEmbedAll_BatchCountMismatch(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{Embeddings: [][]float32{{0.1}}}}

	_, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedAll_FallbackToSingle(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{
		Embedding:    []float32{0.5},
		PromptTokens: 3,
		TotalTokens:  3,
	}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 9 || res.PromptTokens != 9 {
		t.Errorf("expected 9 tokens, got %+v", res)
	}
}

func TestEmbedAll_FallbackError(t *testing.T) {
	innerErr := errors.New("fail")
	_, err := EmbedAll(context.Background(), &stubEmbedder{err: innerErr}, []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestStageError(t *testing.T) {
	err := NewStageError(StageRerank, ErrGeneration)

	if !errors.Is(err, ErrGeneration) {
		t.Error("expected StageError to unwrap to ErrGeneration")
	}
	stage, ok := StageOf(err)
	if !ok || stage != StageRerank {
		t.Errorf("expected stage %q, got %q (ok=%v)", StageRerank, stage, ok)
	}
	if err.Error() != "rerank stage: generation failed" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if NewStageError(StageNormalize, nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestUsage_NilSafe(t *testing.T) {
	var u *Usage
	u.AddEmbeddingTokens(5)
	u.AddGenerationTokens(5)

	ctx, usage := NewContextWithUsage(context.Background())
	UsageFromContext(ctx).AddEmbeddingTokens(7)
	UsageFromContext(ctx).AddGenerationTokens(11)
	if usage.EmbeddingTokens != 7 || usage.GenerationTokens != 11 || !usage.Embedded {
		t.Errorf("unexpected usage: %+v", usage)
	}
}
