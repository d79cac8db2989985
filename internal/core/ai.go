package core

import "context"

// EmbeddingProvider converts a batch of texts into fixed-dimension vectors.
// Providers are rate-limited upstream; callers bound batch sizes themselves.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
