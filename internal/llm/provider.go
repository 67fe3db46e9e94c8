package llm

import "context"

// Provider defines the interface for chat-completion backends.
type Provider interface {
	// Complete sends a completion request and returns the chosen message.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
