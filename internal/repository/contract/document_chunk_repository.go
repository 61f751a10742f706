package contract

import (
	"context"

	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/repository/specification"
)

// ScoredDocumentChunk wraps a chunk with its cosine distance to the query
type ScoredDocumentChunk struct {
	Chunk    *entity.Chunk
	Distance float64 // 0.0 = identical
}

type DocumentChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.EmbeddedChunk) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchNearest returns up to limit chunks by ascending cosine distance
	SearchNearest(ctx context.Context, embedding []float32, limit int) ([]*ScoredDocumentChunk, error)
}
