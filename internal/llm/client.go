// Package llm provides the inference backend client: text generation and embeddings.
package llm

import "context"

// Client is the narrow contract to the inference backend. Both calls are
// single request/response; no streaming, no retry at this layer.
type Client interface {
	// GenerateText produces one complete text response for the given system
	// and user prompts.
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Embed converts text to a fixed-length vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	Close() error
}
