package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"rulegen/internal/config"
)

// CompletionRequest is a single text-completion call. When ForceJSON is
// set the provider asks the model for a JSON-typed response; the payload
// is still parsed defensively by the caller.
type CompletionRequest struct {
	System    string
	Prompt    string
	ForceJSON bool
}

// Oracle abstracts the text-completion capability. Implementations are
// untrusted: responses may be malformed or truncated.
type Oracle interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// NewOracle builds the configured provider.
func NewOracle(ctx context.Context, cfg *config.Config) (Oracle, error) {
	if cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("AI API key not configured")
	}
	switch strings.ToLower(cfg.AI.Provider) {
	case "openai":
		return NewOpenAIOracle(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL), nil
	case "gemini":
		return NewGeminiOracle(ctx, cfg.AI.APIKey, cfg.AI.Model)
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.AI.Provider)
	}
}

// IsRetryable reports whether a completion error is worth retrying with
// backoff (rate limits, server-side failures, timeouts).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "resource exhausted", "unavailable", "overloaded", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
