package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/repository/specification"
	"virtualrag-be/internal/repository/unitofwork"

	"golang.org/x/sync/errgroup"
)

// PgvectorStore keeps chunks in Postgres with the pgvector extension.
// A document row is written in the same transaction as its chunks.
type PgvectorStore struct {
	repoFactory unitofwork.RepositoryFactory
	embed       EmbedFunc
	concurrency int
}

var (
	_ Index           = (*PgvectorStore)(nil)
	_ DocumentCounter = (*PgvectorStore)(nil)
)

func NewPgvectorStore(repoFactory unitofwork.RepositoryFactory, embed EmbedFunc) *PgvectorStore {
	return &PgvectorStore{
		repoFactory: repoFactory,
		embed:       embed,
		concurrency: runtime.NumCPU(),
	}
}

func (s *PgvectorStore) Add(ctx context.Context, chunks []entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embedded := make([]*entity.EmbeddedChunk, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := s.embed(gctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunks[i].Id, err)
			}
			embedded[i] = &entity.EmbeddedChunk{Chunk: chunks[i], Embedding: vec}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	uow := s.repoFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.DocumentChunkRepository().CreateBulk(ctx, embedded); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	first := chunks[0]
	record := &entity.DocumentRecord{
		ContentHash: first.ContentHash,
		Filename:    first.Filename,
		ChunkCount:  len(chunks),
		CreatedAt:   time.Now(),
	}
	if err := uow.DocumentRepository().Create(ctx, record); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	return uow.Commit()
}

func (s *PgvectorStore) Query(ctx context.Context, text string, k int) ([]entity.ScoredChunk, error) {
	uow := s.repoFactory.NewUnitOfWork(ctx)

	count, err := uow.DocumentChunkRepository().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if int64(k) > count {
		k = int(count)
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := uow.DocumentChunkRepository().SearchNearest(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	out := make([]entity.ScoredChunk, 0, len(results))
	for _, r := range results {
		out = append(out, entity.ScoredChunk{Chunk: *r.Chunk, Distance: r.Distance})
	}
	return out, nil
}

func (s *PgvectorStore) Count(ctx context.Context) (int, error) {
	count, err := s.repoFactory.NewUnitOfWork(ctx).DocumentChunkRepository().Count(ctx)
	return int(count), err
}

func (s *PgvectorStore) DocumentCount(ctx context.Context) (int, error) {
	count, err := s.repoFactory.NewUnitOfWork(ctx).DocumentRepository().Count(ctx)
	return int(count), err
}

func (s *PgvectorStore) Document(ctx context.Context, contentHash string) (*entity.DocumentRecord, error) {
	return s.repoFactory.NewUnitOfWork(ctx).DocumentRepository().FindOne(ctx, specification.ByContentHash{Hash: contentHash})
}
