package embed

import "context"

// Provider maps text strings to fixed-length dense vectors.
// Implementations must return one vector per input text, in input order,
// and should batch provider calls internally.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Embed returns embeddings for the given texts, preserving input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
