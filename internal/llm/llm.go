// Package llm provides the answer-generation client for OpenAI-compatible
// chat completion APIs.
package llm

import "context"

// Client generates text completions. Implementations must be safe for
// concurrent use.
type Client interface {
	// Complete sends prompt as a single user message and returns the
	// generated text.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// ModelName reports the model used for completions.
	ModelName() string
}
