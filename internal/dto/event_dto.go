package dto

import "time"

// DocumentIndexedMessage is published on the in-process bus after a successful ingestion.
type DocumentIndexedMessage struct {
	ContentHash string    `json:"content_hash"`
	Filename    string    `json:"filename"`
	ChunkCount  int       `json:"chunk_count"`
	SessionId   string    `json:"session_id,omitempty"`
	IndexedAt   time.Time `json:"indexed_at"`
}
