// Package embedding provides text embedding via ONNX with a deterministic
// hash-based fallback, plus a named model registry and an LRU cache.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations are safe
// for concurrent use after construction.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
