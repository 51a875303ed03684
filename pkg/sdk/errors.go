package lookbook

import "github.com/kailas-cloud/lookbook/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrMissingCredential      = domain.ErrMissingCredential
	ErrLoad                   = domain.ErrLoad
	ErrGeneration             = domain.ErrGeneration
	ErrRerankFormat           = domain.ErrRerankFormat
	ErrEmptyCandidates        = domain.ErrEmptyCandidates
	ErrItemNotFound           = domain.ErrItemNotFound
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrCaption                = domain.ErrCaption
)

// StageOf returns the pipeline stage ("normalize", "retrieve", "rerank")
// that produced err, if any.
func StageOf(err error) (string, bool) {
	stage, ok := domain.StageOf(err)
	return string(stage), ok
}
