package completion

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v3"

	"vetter/internal/models"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-3.5-turbo"

// ErrNoChoices is returned when the API answers without any candidate.
var ErrNoChoices = errors.New("completion returned no choices")

// Finish reasons reported by the API.
const (
	FinishStop      = "stop"
	FinishMaxTokens = "max_tokens"
	FinishLength    = "length"
)

// Usage is the token accounting reported with a choice, when available.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Choice is the first candidate returned by the completion endpoint.
type Choice struct {
	Message      models.Message
	FinishReason string
	Usage        Usage
}

// Truncated reports whether generation stopped on the length limit.
func (c *Choice) Truncated() bool {
	return c != nil && IsTruncated(c.FinishReason)
}

// IsTruncated reports whether a finish reason means the output was cut off.
func IsTruncated(reason string) bool {
	return reason == FinishMaxTokens || reason == FinishLength
}

// Completer sends the whole transcript and returns the first choice.
type Completer interface {
	Complete(ctx context.Context, messages []models.Message) (*Choice, error)
}

// Retryable separates transient failures from ones that will not improve on
// a second try. Cancellation of the caller's context is handled by the retry
// loop itself.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
			return true
		case code >= 400 && code < 500:
			return false
		}
	}
	return true
}
