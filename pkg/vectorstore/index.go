package vectorstore

import (
	"context"

	"virtualrag-be/internal/entity"
)

// Index is the vector index the pipeline writes to and retrieves from.
type Index interface {
	// Add stores one document's chunks as a single batch. On error none of
	// the batch is visible to Query.
	Add(ctx context.Context, chunks []entity.Chunk) error

	// Query returns at most k chunks ordered by ascending cosine distance.
	Query(ctx context.Context, text string, k int) ([]entity.ScoredChunk, error)

	// Count is the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Document looks up a stored document by content hash. It returns nil, nil
	// when the hash is unknown.
	Document(ctx context.Context, contentHash string) (*entity.DocumentRecord, error)
}

// DocumentCounter is implemented by backends that track documents separately from chunks.
type DocumentCounter interface {
	DocumentCount(ctx context.Context) (int, error)
}

// EmbedFunc turns text into a unit vector.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

const (
	metaFilename    = "filename"
	metaContentHash = "content_hash"
	metaChunkIndex  = "chunk_index"
	metaTotalChunks = "total_chunks"
)
