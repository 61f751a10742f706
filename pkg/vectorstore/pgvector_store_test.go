package vectorstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/repository/contract"
	"virtualrag-be/internal/repository/specification"
	"virtualrag-be/internal/repository/unitofwork"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB stands in for Postgres: writes are staged per unit of work and
// only become visible on Commit.
type fakeDB struct {
	mu           sync.Mutex
	documents    map[string]*entity.DocumentRecord
	chunks       []*entity.EmbeddedChunk
	failDocument bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{documents: make(map[string]*entity.DocumentRecord)}
}

func (db *fakeDB) NewUnitOfWork(_ context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{db: db}
}

type fakeUnitOfWork struct {
	db        *fakeDB
	inTx      bool
	stagedDoc []*entity.DocumentRecord
	stagedChk []*entity.EmbeddedChunk
}

func (u *fakeUnitOfWork) Begin(context.Context) error {
	if u.inTx {
		return errors.New("transaction already started")
	}
	u.inTx = true
	return nil
}

func (u *fakeUnitOfWork) Commit() error {
	if !u.inTx {
		return errors.New("no transaction to commit")
	}
	u.db.mu.Lock()
	defer u.db.mu.Unlock()
	for _, d := range u.stagedDoc {
		u.db.documents[d.ContentHash] = d
	}
	u.db.chunks = append(u.db.chunks, u.stagedChk...)
	u.inTx = false
	return nil
}

func (u *fakeUnitOfWork) Rollback() error {
	if !u.inTx {
		return errors.New("no transaction to rollback")
	}
	u.stagedDoc, u.stagedChk, u.inTx = nil, nil, false
	return nil
}

func (u *fakeUnitOfWork) DocumentRepository() contract.DocumentRepository {
	return &fakeDocumentRepo{uow: u}
}

func (u *fakeUnitOfWork) DocumentChunkRepository() contract.DocumentChunkRepository {
	return &fakeChunkRepo{uow: u}
}

type fakeDocumentRepo struct{ uow *fakeUnitOfWork }

func (r *fakeDocumentRepo) Create(_ context.Context, d *entity.DocumentRecord) error {
	if r.uow.db.failDocument {
		return errors.New("duplicate key value violates unique constraint")
	}
	r.uow.stagedDoc = append(r.uow.stagedDoc, d)
	return nil
}

func (r *fakeDocumentRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.DocumentRecord, error) {
	r.uow.db.mu.Lock()
	defer r.uow.db.mu.Unlock()
	for _, s := range specs {
		if h, ok := s.(specification.ByContentHash); ok {
			return r.uow.db.documents[h.Hash], nil
		}
	}
	return nil, nil
}

func (r *fakeDocumentRepo) Count(context.Context, ...specification.Specification) (int64, error) {
	r.uow.db.mu.Lock()
	defer r.uow.db.mu.Unlock()
	return int64(len(r.uow.db.documents)), nil
}

type fakeChunkRepo struct{ uow *fakeUnitOfWork }

func (r *fakeChunkRepo) CreateBulk(_ context.Context, chunks []*entity.EmbeddedChunk) error {
	r.uow.stagedChk = append(r.uow.stagedChk, chunks...)
	return nil
}

func (r *fakeChunkRepo) Count(context.Context, ...specification.Specification) (int64, error) {
	r.uow.db.mu.Lock()
	defer r.uow.db.mu.Unlock()
	return int64(len(r.uow.db.chunks)), nil
}

func (r *fakeChunkRepo) SearchNearest(_ context.Context, embedding []float32, limit int) ([]*contract.ScoredDocumentChunk, error) {
	r.uow.db.mu.Lock()
	defer r.uow.db.mu.Unlock()

	scored := make([]*contract.ScoredDocumentChunk, 0, len(r.uow.db.chunks))
	for _, c := range r.uow.db.chunks {
		var dot float64
		for i := range embedding {
			dot += float64(embedding[i] * c.Embedding[i])
		}
		chunk := c.Chunk
		scored = append(scored, &contract.ScoredDocumentChunk{Chunk: &chunk, Distance: 1 - dot})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func TestPgvectorStoreAddAndQuery(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	store := NewPgvectorStore(db, bagOfWords)

	require.NoError(t, store.Add(ctx, chunksFor("h1", "cats.txt", "cats purr and sleep", "cats chase mice")))
	require.NoError(t, store.Add(ctx, chunksFor("h2", "rockets.txt", "rockets burn fuel")))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	docs, err := store.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, docs)

	results, err := store.Query(ctx, "rockets fuel", 10)
	require.NoError(t, err)
	require.Len(t, results, 3, "k is clamped to the chunk count")
	assert.Equal(t, "rockets.txt", results[0].Chunk.Filename)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)

	record, err := store.Document(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "cats.txt", record.Filename)
	assert.Equal(t, 2, record.ChunkCount)

	missing, err := store.Document(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPgvectorStoreEmptyIndex(t *testing.T) {
	store := NewPgvectorStore(newFakeDB(), bagOfWords)

	results, err := store.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPgvectorStoreFailedAddLeavesNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding failure", func(t *testing.T) {
		db := newFakeDB()
		failing := func(ctx context.Context, text string) ([]float32, error) {
			if text == "bad" {
				return nil, errors.New("embedding backend down")
			}
			return bagOfWords(ctx, text)
		}
		store := NewPgvectorStore(db, failing)

		err := store.Add(ctx, chunksFor("h1", "a.txt", "good", "bad"))
		require.Error(t, err)

		count, _ := store.Count(ctx)
		assert.Zero(t, count)
	})

	t.Run("document insert failure", func(t *testing.T) {
		db := newFakeDB()
		db.failDocument = true
		store := NewPgvectorStore(db, bagOfWords)

		err := store.Add(ctx, chunksFor("h1", "a.txt", "one", "two"))
		require.Error(t, err)

		count, _ := store.Count(ctx)
		assert.Zero(t, count)
		record, _ := store.Document(ctx, "h1")
		assert.Nil(t, record)
	})
}
