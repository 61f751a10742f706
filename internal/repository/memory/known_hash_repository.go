package memory

import (
	"github.com/patrickmn/go-cache"
)

// KnownHashRepository remembers content hashes already committed to the index.
// It is a fast path only; the index stays authoritative.
type KnownHashRepository struct {
	cache *cache.Cache
}

func NewKnownHashRepository() *KnownHashRepository {
	// Hashes never expire: an indexed document stays indexed
	c := cache.New(cache.NoExpiration, 0)
	return &KnownHashRepository{
		cache: c,
	}
}

func (r *KnownHashRepository) Mark(contentHash, filename string) {
	r.cache.Set(contentHash, filename, cache.NoExpiration)
}

// Contains reports whether the hash is known and the filename it was first stored under.
func (r *KnownHashRepository) Contains(contentHash string) (string, bool) {
	if x, found := r.cache.Get(contentHash); found {
		return x.(string), true
	}
	return "", false
}

func (r *KnownHashRepository) Count() int {
	return r.cache.ItemCount()
}
