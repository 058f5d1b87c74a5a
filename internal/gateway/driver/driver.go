// Package driver defines the provider-agnostic backend capability: turn a
// chat prompt into raw completion text. One implementation exists per
// provider type; the gateway selects one at construction and never
// re-dispatches per call.
package driver

import "context"

// Driver is the interface chat-completion backends implement.
type Driver interface {
	// Generate sends a completion request and reduces the provider response
	// to raw text.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "openai").
	Name() string
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Stop        []string
}

// Response is a provider-agnostic completion response. Whatever structure the
// provider returned has already been reduced to a single text payload.
type Response struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
