package domain

import "context"

// Message roles understood by chat-completion providers.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one entry of a chat prompt. ImageURL (http(s) or data URL)
// turns the message multimodal; only vision models accept it.
type Message struct {
	Role     string
	Content  string
	ImageURL string
}

// CompletionRequest describes a single generative call.
// Attempt-level concerns (timeouts, retries) belong to the caller.
type CompletionRequest struct {
	Model            string
	Messages         []Message
	Temperature      float32
	TopP             float32
	FrequencyPenalty float32
	MaxTokens        int
	JSONMode         bool
}

// Completion is the provider answer.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Generator is the generative completion contract shared by the normalizer and reranker.
type Generator interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
