package entity

import (
	"fmt"
	"time"
)

// DocumentRecord is one unique piece of extracted content, addressed by its hash.
type DocumentRecord struct {
	ContentHash string
	Filename    string
	ChunkCount  int
	CreatedAt   time.Time
}

// Chunk is an indexed span of a document. Chunks are written once and never mutated.
type Chunk struct {
	Id          string
	Content     string
	Filename    string
	ContentHash string
	ChunkIndex  int
	TotalChunks int
}

// ChunkID derives the index-wide identifier of the chunk at index within hash.
func ChunkID(contentHash string, index int) string {
	return fmt.Sprintf("%s_%d", contentHash, index)
}

// ScoredChunk is a raw index hit. Distance is the index's cosine distance.
type ScoredChunk struct {
	Chunk    Chunk
	Distance float64
}

type RetrievalResult struct {
	Content        string
	Filename       string
	RelevanceScore float64
}

// EmbeddedChunk pairs a chunk with its vector for backends that store embeddings themselves.
type EmbeddedChunk struct {
	Chunk     Chunk
	Embedding []float32
}
