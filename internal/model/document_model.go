package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type Document struct {
	ContentHash string    `gorm:"type:char(64);primaryKey"`
	Filename    string    `gorm:"type:text;not null"`
	ChunkCount  int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Document) TableName() string {
	return "documents"
}

type DocumentChunk struct {
	Id             string            `gorm:"type:text;primaryKey"` // <content_hash>_<chunk_index>
	ContentHash    string            `gorm:"type:char(64);not null;index"`
	ChunkIndex     int               `gorm:"not null"`
	TotalChunks    int               `gorm:"not null"`
	Filename       string            `gorm:"type:text"`
	Content        string            `gorm:"type:text"`
	EmbeddingValue pgvector.Vector   `gorm:"type:vector"` // dimension follows EMBEDDING_MODEL
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
