package chunk

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func initTokenEncoder() error {
	encoderOnce.Do(func() {
		// cl100k_base covers the chat models both providers accept.
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// CountTokens counts tokens via tiktoken, falling back to a character
// estimate when the encoder cannot initialize (e.g. offline).
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return estimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

func estimateTokens(text string) int {
	// Rough heuristic: ~4 characters per token for English prose.
	return (len(text) + 3) / 4
}
