package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential signals that a provider API key could not be resolved.
	ErrMissingCredential = errors.New("missing credential")
	// ErrGeneration signals that the generative service failed after all retries.
	ErrGeneration = errors.New("generation failed")
	// ErrRerankFormat signals a rerank response that does not match the required schema.
	ErrRerankFormat = errors.New("rerank response format invalid")
	// ErrBuild signals an index construction failure.
	ErrBuild = errors.New("index build failed")
	// ErrLoad signals a missing or corrupt persisted index.
	ErrLoad = errors.New("index load failed")
	// ErrEmptyCandidates signals a rerank request with no candidates.
	ErrEmptyCandidates = errors.New("no candidates to rerank")
	// ErrInvalidRequest signals bad caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrVectorDimMismatch signals a vector whose dimension differs from the index.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrItemNotFound signals an unknown catalog id.
	ErrItemNotFound = errors.New("catalog item not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCaption signals an image description failure.
	ErrCaption = errors.New("image description failed")
	// ErrBudgetExceeded signals that the generation token budget is spent.
	ErrBudgetExceeded = errors.New("generation token budget exceeded")
)

// Stage names a step of the recommendation pipeline.
type Stage string

// Pipeline stages.
const (
	StageNormalize Stage = "normalize"
	StageRetrieve  Stage = "retrieve"
	StageRerank    Stage = "rerank"
)

// StageError attributes a pipeline failure to the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with stage attribution. Returns nil for a nil err.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage attached to err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
