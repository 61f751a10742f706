package mapper

import (
	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.DocumentRecord {
	if d == nil {
		return nil
	}
	return &entity.DocumentRecord{
		ContentHash: d.ContentHash,
		Filename:    d.Filename,
		ChunkCount:  d.ChunkCount,
		CreatedAt:   d.CreatedAt,
	}
}

func (m *DocumentMapper) ToModel(d *entity.DocumentRecord) *model.Document {
	if d == nil {
		return nil
	}
	return &model.Document{
		ContentHash: d.ContentHash,
		Filename:    d.Filename,
		ChunkCount:  d.ChunkCount,
		CreatedAt:   d.CreatedAt,
	}
}

type DocumentChunkMapper struct{}

func NewDocumentChunkMapper() *DocumentChunkMapper {
	return &DocumentChunkMapper{}
}

func (m *DocumentChunkMapper) ToEntity(c *model.DocumentChunk) *entity.Chunk {
	if c == nil {
		return nil
	}
	return &entity.Chunk{
		Id:          c.Id,
		Content:     c.Content,
		Filename:    c.Filename,
		ContentHash: c.ContentHash,
		ChunkIndex:  c.ChunkIndex,
		TotalChunks: c.TotalChunks,
	}
}

func (m *DocumentChunkMapper) ToModel(e *entity.EmbeddedChunk) *model.DocumentChunk {
	if e == nil {
		return nil
	}
	c := e.Chunk
	return &model.DocumentChunk{
		Id:             c.Id,
		ContentHash:    c.ContentHash,
		ChunkIndex:     c.ChunkIndex,
		TotalChunks:    c.TotalChunks,
		Filename:       c.Filename,
		Content:        c.Content,
		EmbeddingValue: pgvector.NewVector(e.Embedding),
		Metadata: datatypes.JSONMap{
			"filename":     c.Filename,
			"content_hash": c.ContentHash,
			"chunk_index":  c.ChunkIndex,
			"total_chunks": c.TotalChunks,
		},
	}
}

func (m *DocumentChunkMapper) ToModels(chunks []*entity.EmbeddedChunk) []*model.DocumentChunk {
	models := make([]*model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}
