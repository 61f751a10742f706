package embedding

import "context"

// EmbeddingProvider defines the interface for generating text embeddings.
// Its method set matches chromem.EmbeddingFunc so it plugs into either index backend.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
