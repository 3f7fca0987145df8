// Package llm provides the completion clients used by the consultant.
package llm

import "context"

// LLMClient defines the interface for chat completion providers.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request (non-streaming).
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*MockClient)(nil)
	_ LLMClient = (*GeminiClient)(nil)
)
