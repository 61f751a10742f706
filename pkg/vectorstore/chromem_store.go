package vectorstore

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"virtualrag-be/internal/entity"

	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"
)

// ChromemStore is the embedded default backend. With a path it persists to disk.
type ChromemStore struct {
	db          *chromem.DB
	collection  *chromem.Collection
	embed       EmbedFunc
	concurrency int

	// probe is any vector of the collection's dimension, used to list by metadata
	probeMu sync.Mutex
	probe   []float32
}

var (
	_ Index           = (*ChromemStore)(nil)
	_ DocumentCounter = (*ChromemStore)(nil)
)

// NewChromemStore opens (or creates) the collection. An empty path keeps everything in memory.
func NewChromemStore(path, collection string, embed EmbedFunc) (*ChromemStore, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create vectorstore dir: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open vectorstore: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collection, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collection, err)
	}

	return &ChromemStore{
		db:          db,
		collection:  col,
		embed:       embed,
		concurrency: runtime.NumCPU(),
	}, nil
}

func (s *ChromemStore) Add(ctx context.Context, chunks []entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// 1. Embed everything up front so a failing embedding leaves nothing behind
	docs := make([]chromem.Document, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := s.embed(gctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunks[i].Id, err)
			}
			docs[i] = toChromemDocument(chunks[i], vec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 2. Insert the batch; roll back whatever landed if it fails midway
	if err := s.collection.AddDocuments(ctx, docs, s.concurrency); err != nil {
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		if delErr := s.collection.Delete(context.Background(), nil, nil, ids...); delErr != nil {
			return fmt.Errorf("add documents: %w (rollback failed: %v)", err, delErr)
		}
		return fmt.Errorf("add documents: %w", err)
	}

	s.probeMu.Lock()
	if s.probe == nil {
		s.probe = docs[0].Embedding
	}
	s.probeMu.Unlock()
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, text string, k int) ([]entity.ScoredChunk, error) {
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]entity.ScoredChunk, 0, len(results))
	for _, r := range results {
		out = append(out, entity.ScoredChunk{
			Chunk:    fromChromemMetadata(r.ID, r.Content, r.Metadata),
			Distance: 1 - float64(r.Similarity),
		})
	}
	return out, nil
}

func (s *ChromemStore) Count(_ context.Context) (int, error) {
	return s.collection.Count(), nil
}

// DocumentCount counts the distinct content hashes stored in the collection.
// Every document has a first chunk, so only those are listed.
func (s *ChromemStore) DocumentCount(ctx context.Context) (int, error) {
	count := s.collection.Count()
	if count == 0 {
		return 0, nil
	}
	probe, err := s.probeVector(ctx)
	if err != nil {
		return 0, err
	}

	results, err := s.collection.QueryEmbedding(ctx, probe, count, map[string]string{metaChunkIndex: "0"}, nil)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	hashes := make(map[string]struct{}, len(results))
	for _, r := range results {
		hashes[r.Metadata[metaContentHash]] = struct{}{}
	}
	return len(hashes), nil
}

func (s *ChromemStore) probeVector(ctx context.Context) ([]float32, error) {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	if s.probe != nil {
		return s.probe, nil
	}
	vec, err := s.embed(ctx, "document")
	if err != nil {
		return nil, fmt.Errorf("embed probe: %w", err)
	}
	s.probe = vec
	return vec, nil
}

// Document probes for the first chunk of the hash; every stored document has one.
func (s *ChromemStore) Document(ctx context.Context, contentHash string) (*entity.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.collection.GetByID(ctx, entity.ChunkID(contentHash, 0))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", contentHash, err)
	}
	c := fromChromemMetadata(doc.ID, doc.Content, doc.Metadata)
	return &entity.DocumentRecord{
		ContentHash: contentHash,
		Filename:    c.Filename,
		ChunkCount:  c.TotalChunks,
	}, nil
}

// chromem reports a missing ID with a plain error, not a sentinel.
func isNotFound(err error) bool {
	return strings.HasSuffix(err.Error(), "not found")
}

func toChromemDocument(c entity.Chunk, vec []float32) chromem.Document {
	return chromem.Document{
		ID:        c.Id,
		Content:   c.Content,
		Embedding: vec,
		Metadata: map[string]string{
			metaFilename:    c.Filename,
			metaContentHash: c.ContentHash,
			metaChunkIndex:  strconv.Itoa(c.ChunkIndex),
			metaTotalChunks: strconv.Itoa(c.TotalChunks),
		},
	}
}

func fromChromemMetadata(id, content string, meta map[string]string) entity.Chunk {
	index, _ := strconv.Atoi(meta[metaChunkIndex])
	total, _ := strconv.Atoi(meta[metaTotalChunks])
	return entity.Chunk{
		Id:          id,
		Content:     content,
		Filename:    meta[metaFilename],
		ContentHash: meta[metaContentHash],
		ChunkIndex:  index,
		TotalChunks: total,
	}
}
