package specification

import "gorm.io/gorm"

// ByContentHash filters documents or chunks belonging to one content hash
type ByContentHash struct {
	Hash string
}

func (s ByContentHash) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("content_hash = ?", s.Hash)
}
