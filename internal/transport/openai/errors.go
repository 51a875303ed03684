package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/lookbook/internal/retry"
)

// parseAPIError turns a go-openai error into a readable one wrapping sentinel.
// Client-side rejections (bad request, auth, unknown model) are marked permanent
// so callers do not burn retries on them; everything else stays retryable.
func parseAPIError(err error, sentinel error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("provider call timed out: %w", errors.Join(sentinel, err))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		wrapped := fmt.Errorf("provider API error %d: %s: %w", reqErr.HTTPStatusCode, detail, sentinel)
		return classify(reqErr.HTTPStatusCode, wrapped)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("provider API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, sentinel)
		return classify(apiErr.HTTPStatusCode, wrapped)
	}

	return fmt.Errorf("provider request failed: %w", errors.Join(sentinel, err))
}

func classify(status int, err error) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return retry.Permanent(err)
	default:
		return err
	}
}

// extractDetail extracts the "detail" field from a JSON error body (FastAPI-style providers).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
