package vectorstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/model"
	"virtualrag-be/internal/repository/unitofwork"
	"virtualrag-be/pkg/database"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisEmbed maps each known word onto its own axis of a small space.
func axisEmbed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	switch text {
	case "alpha", "alpha chunk":
		vec[0] = 1
	case "beta", "beta chunk":
		vec[1] = 1
	default:
		vec[3] = 1
	}
	return vec, nil
}

func TestPgvectorStoreAgainstPostgres(t *testing.T) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)

	// One connection so search_path applies to every statement
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	schema := fmt.Sprintf("virtualrag_it_%d", time.Now().UnixNano())
	require.NoError(t, db.Exec("CREATE SCHEMA "+schema).Error)
	t.Cleanup(func() {
		db.Exec("DROP SCHEMA " + schema + " CASCADE")
		sqlDB.Close()
	})
	require.NoError(t, db.Exec("SET search_path TO "+schema+", public").Error)
	require.NoError(t, database.Migrate(db, &model.Document{}, &model.DocumentChunk{}))

	ctx := context.Background()
	store := NewPgvectorStore(unitofwork.NewRepositoryFactory(db), axisEmbed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	chunks := []entity.Chunk{
		{Id: entity.ChunkID("hash-a", 0), Content: "alpha chunk", Filename: "a.txt", ContentHash: "hash-a", ChunkIndex: 0, TotalChunks: 2},
		{Id: entity.ChunkID("hash-a", 1), Content: "beta chunk", Filename: "a.txt", ContentHash: "hash-a", ChunkIndex: 1, TotalChunks: 2},
	}
	require.NoError(t, store.Add(ctx, chunks))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	docs, err := store.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, docs)

	hits, err := store.Query(ctx, "beta", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "beta chunk", hits[0].Chunk.Content)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.InDelta(t, 1, hits[1].Distance, 1e-6)

	record, err := store.Document(ctx, "hash-a")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "a.txt", record.Filename)
	assert.Equal(t, 2, record.ChunkCount)

	missing, err := store.Document(ctx, "hash-b")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
