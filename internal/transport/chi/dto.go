package chi

// RecommendRequest is the body of POST /api/v1/recommendations.
// At most one of ImageURL and ImageBase64 may be set; either one is described
// first and the description joins the query.
type RecommendRequest struct {
	Query           string `json:"query"`
	ItemDescription string `json:"item_description,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	ImageBase64     string `json:"image_base64,omitempty"`
	N               *int   `json:"n,omitempty"`
	K               *int   `json:"k,omitempty"`
}

// RecommendResponse is the body of a successful recommendation.
type RecommendResponse struct {
	NormalizedIntent string         `json:"normalized_intent"`
	ItemDescription  string         `json:"item_description,omitempty"`
	Items            []ItemResponse `json:"items"`
}

// IntentRequest is the body of POST /api/v1/intents.
type IntentRequest struct {
	Query           string `json:"query"`
	ItemDescription string `json:"item_description,omitempty"`
}

// IntentResponse carries a normalized intent.
type IntentResponse struct {
	NormalizedIntent string `json:"normalized_intent"`
}

// DescribeRequest is the body of POST /api/v1/descriptions.
type DescribeRequest struct {
	ImageURL    string `json:"image_url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// DescribeResponse carries a generated item description.
type DescribeResponse struct {
	Description string `json:"description"`
}

// ItemResponse is one catalog item.
type ItemResponse struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	IndexItems   int               `json:"index_items"`
	IndexBuildID string            `json:"index_build_id,omitempty"`
}

// UsageResponse is the body of GET /api/v1/usage. Remaining is -1 when the
// budget is unlimited.
type UsageResponse struct {
	Period      string `json:"period"`
	PeriodStart int64  `json:"period_start_ms"`
	PeriodEnd   int64  `json:"period_end_ms"`
	TokensUsed  int64  `json:"tokens_used"`
	TokensLimit int64  `json:"tokens_limit"`
	Remaining   int64  `json:"tokens_remaining"`
	Exhausted   bool   `json:"exhausted"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Stage   string    `json:"stage,omitempty"`
}

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeEmptyCandidates        ErrorCode = "empty_candidates"
	ErrorCodeItemNotFound           ErrorCode = "item_not_found"
	ErrorCodeGenerationFailed       ErrorCode = "generation_failed"
	ErrorCodeRerankFormatInvalid    ErrorCode = "rerank_format_invalid"
	ErrorCodeCaptionFailed          ErrorCode = "caption_failed"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeBudgetExceeded         ErrorCode = "budget_exceeded"
	ErrorCodeNotImplemented         ErrorCode = "not_implemented"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)
