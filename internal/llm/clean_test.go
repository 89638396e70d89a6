package llm

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestCleanJSONOutput(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSONOutput("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSONOutput("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSONOutput(`  {"a":1}  `))
	assert.Equal(t, "", CleanJSONOutput("```json```"))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("invalid api key")))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(errors.New("429 Too Many Requests")))
	assert.True(t, IsRetryable(errors.New("model is overloaded, try again")))
	assert.True(t, IsRetryable(&openai.APIError{HTTPStatusCode: 500}))
	assert.True(t, IsRetryable(&openai.APIError{HTTPStatusCode: 429}))
	assert.False(t, IsRetryable(&openai.APIError{HTTPStatusCode: 400}))
}
