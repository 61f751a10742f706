package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/entity"
	"virtualrag-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files must be released")
}

func TestIngestSuccessThenDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t, newTestIndex(t))

	first, err := f.service.Ingest(ctx, "a.txt", []byte("hello world"), "s1")
	require.NoError(t, err)
	assert.Equal(t, constant.DocumentStatusSuccess, first.Status)
	assert.Equal(t, 1, first.Chunks)
	assert.Equal(t, "Added 'a.txt' (1 chunks)", first.Message)
	assert.Len(t, first.ContentHash, 64)

	countAfterFirst, err := f.index.Count(ctx)
	require.NoError(t, err)

	// Same bytes under another name
	second, err := f.service.Ingest(ctx, "copy.txt", []byte("hello world"), "s2")
	require.NoError(t, err)
	assert.Equal(t, constant.DocumentStatusDuplicate, second.Status)
	assert.Equal(t, "Document 'copy.txt' already exists in database", second.Message)
	assert.Zero(t, second.Chunks)

	countAfterSecond, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, countAfterFirst, countAfterSecond)

	assertTempDirEmpty(t, f.tempDir)

	require.Len(t, f.publisher.payloads, 1)
	var published dto.DocumentIndexedMessage
	require.NoError(t, json.Unmarshal(f.publisher.payloads[0], &published))
	assert.Equal(t, first.ContentHash, published.ContentHash)
	assert.Equal(t, "a.txt", published.Filename)
	assert.Equal(t, "s1", published.SessionId)
}

func TestIngestValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		wantErr  error
		wantMsg  string
	}{
		{
			name:     "unsupported extension",
			filename: "script.exe",
			data:     []byte("MZ"),
			wantErr:  ErrUnsupportedExtension,
			wantMsg:  "Unsupported file type: .exe",
		},
		{
			name:     "allowed by loader but not configured",
			filename: "page.html",
			data:     []byte("<p>hi</p>"),
			wantErr:  ErrUnsupportedExtension,
			wantMsg:  "Unsupported file type: .html",
		},
		{
			name:     "too large",
			filename: "big.txt",
			data:     []byte(strings.Repeat("x", 2048)),
			wantErr:  ErrFileTooLarge,
			wantMsg:  "File too large: 0.00MB (max: 1MB)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newIngestionFixture(t, newTestIndex(t))

			result, err := f.service.Ingest(ctx, tt.filename, tt.data, "s1")
			assert.Nil(t, result)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, verr.Message)

			n, _ := f.index.Count(ctx)
			assert.Zero(t, n)
			assert.Zero(t, f.knownHashes.Count())
			assertTempDirEmpty(t, f.tempDir)
		})
	}
}

func TestIngestExtensionIsCaseInsensitive(t *testing.T) {
	f := newIngestionFixture(t, newTestIndex(t))

	result, err := f.service.Ingest(context.Background(), "NOTES.TXT", []byte("upper case name"), "s1")
	require.NoError(t, err)
	assert.Equal(t, constant.DocumentStatusSuccess, result.Status)
}

func TestIngestNoContent(t *testing.T) {
	f := newIngestionFixture(t, newTestIndex(t))

	result, err := f.service.Ingest(context.Background(), "blank.txt", []byte("   \n\t  "), "s1")
	require.NoError(t, err)
	assert.Equal(t, constant.DocumentStatusError, result.Status)
	assert.Equal(t, constant.MessageNoContent, result.Message)
	assert.Zero(t, f.knownHashes.Count())
	assertTempDirEmpty(t, f.tempDir)
}

func TestIngestIndexFailureLeavesHashUnmarked(t *testing.T) {
	f := newIngestionFixture(t, brokenIndex{})

	result, err := f.service.Ingest(context.Background(), "a.txt", []byte("hello world"), "s1")
	require.NoError(t, err)
	assert.Equal(t, constant.DocumentStatusError, result.Status)
	assert.Contains(t, result.Message, "Error processing document")
	assert.Zero(t, f.knownHashes.Count())
	assert.Empty(t, f.publisher.payloads)
	assertTempDirEmpty(t, f.tempDir)
}

// lookupFailingIndex stores chunks but cannot answer duplicate lookups.
type lookupFailingIndex struct {
	*vectorstore.ChromemStore
}

func (lookupFailingIndex) Document(context.Context, string) (*entity.DocumentRecord, error) {
	return nil, errors.New("collection unreadable")
}

func TestIngestLookupFailureDoesNotReindex(t *testing.T) {
	ctx := context.Background()
	index := lookupFailingIndex{newTestIndex(t)}
	f := newIngestionFixture(t, index)

	result, err := f.service.Ingest(ctx, "a.txt", []byte("hello world"), "s1")
	require.NoError(t, err)
	assert.Equal(t, constant.DocumentStatusError, result.Status)

	n, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.publisher.payloads)
}

func TestIngestConcurrentIdenticalUploads(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t, newTestIndex(t))

	const uploads = 8
	statuses := make([]string, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.service.Ingest(ctx, "same.txt", []byte("identical content for everyone"), "s")
			if !assert.NoError(t, err) {
				return
			}
			statuses[i] = result.Status
		}()
	}
	wg.Wait()

	var successes, duplicates int
	for _, s := range statuses {
		switch s {
		case constant.DocumentStatusSuccess:
			successes++
		case constant.DocumentStatusDuplicate:
			duplicates++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, uploads-1, duplicates)

	n, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestRecognizesDocumentsIndexedBeforeRestart(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)

	first := newIngestionFixture(t, index)
	_, err := first.service.Ingest(ctx, "a.txt", []byte("persisted before restart"), "s1")
	require.NoError(t, err)

	// Fresh process: empty hash cache, same index
	restarted := newIngestionFixture(t, index)
	require.Zero(t, restarted.knownHashes.Count())

	result, err := restarted.service.Ingest(ctx, "a.txt", []byte("persisted before restart"), "s2")
	require.NoError(t, err)
	assert.Equal(t, constant.DocumentStatusDuplicate, result.Status)
	assert.Equal(t, 1, restarted.knownHashes.Count(), "index hit warms the cache")
}
