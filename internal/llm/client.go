// Package llm provides the model invocation boundary used by the agents and
// the structured output extractor applied to model replies.
package llm

import (
	"context"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request defines a chat completion request.
type Request struct {
	Messages []Message

	// Model overrides the client's default model when set.
	Model string

	// Temperature controls randomness. nil uses the client default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int
}

// TokenUsage represents token consumption details for a call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the completion result.
type Response struct {
	// RequestID uniquely identifies this call for log correlation.
	RequestID    string
	Content      string
	Model        string
	Usage        TokenUsage
	FinishReason string
}

// Client invokes a chat model. Implementations must honor ctx cancellation
// and must not retry on their own.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}
