// Package llm defines the completion contract document analysis runs on.
package llm

import "context"

// Message is one conversational turn in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call to a provider.
type Request struct {
	Model     string
	System    string
	MaxTokens int
	Messages  []Message
}

// Usage reports the token counts a provider billed for one request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Completion is a provider's answer to a Request.
type Completion struct {
	Text  string
	Usage Usage
}

// Client is implemented by completion providers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
