package provider

import "context"

// Provider abstracts the reasoning service that backs the decision oracle
// and the response synthesizer. The interface is protocol-agnostic: the
// adapter handles its own backend protocol internally.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Complete performs a non-streaming completion.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// Message is a single prompt message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request describes one completion call. JSONMode asks the backend to
// constrain the output to a single JSON object (the decision oracle relies
// on this); Temperature controls sampling.
type Request struct {
	Messages    []Message
	Temperature float64
	JSONMode    bool
}

// Response carries the completion output.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Usage holds token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
