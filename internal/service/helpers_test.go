package service

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"testing"

	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/pkg/logger"
	"virtualrag-be/internal/repository/memory"
	"virtualrag-be/pkg/llm"
	"virtualrag-be/pkg/loader"
	"virtualrag-be/pkg/lock"
	"virtualrag-be/pkg/utils"
	"virtualrag-be/pkg/vectorstore"

	"github.com/stretchr/testify/require"
)

// hashedWords is a deterministic stand-in for an embedding model.
func hashedWords(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
		vec[h.Sum32()%64]++
	}
	var mag float64
	for _, v := range vec {
		mag += float64(v * v)
	}
	if mag == 0 {
		vec[0] = 1
		return vec, nil
	}
	mag = math.Sqrt(mag)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / mag)
	}
	return vec, nil
}

func newTestIndex(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	index, err := vectorstore.NewChromemStore("", "test", hashedWords)
	require.NoError(t, err)
	return index
}

type capturedPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *capturedPublisher) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

type ingestionFixture struct {
	service     IIngestionService
	index       vectorstore.Index
	knownHashes *memory.KnownHashRepository
	publisher   *capturedPublisher
	tempDir     string
}

func newIngestionFixture(t *testing.T, index vectorstore.Index) *ingestionFixture {
	t.Helper()
	splitter, err := utils.NewTextSplitter("fixed", 500, 50)
	require.NoError(t, err)

	f := &ingestionFixture{
		index:       index,
		knownHashes: memory.NewKnownHashRepository(),
		publisher:   &capturedPublisher{},
		tempDir:     t.TempDir(),
	}
	f.service = NewIngestionService(
		IngestionOptions{
			AllowedExtensions: []string{".txt", ".pdf"},
			MaxFileSizeBytes:  1024,
			MaxFileSizeMB:     1,
			TempDir:           f.tempDir,
		},
		loader.NewDefaultRegistry(),
		splitter,
		index,
		f.knownHashes,
		lock.NewKeyedMutex(),
		f.publisher,
		nil,
		logger.NewNopLogger(),
	)
	return f
}

// brokenIndex fails every call.
type brokenIndex struct{}

func (brokenIndex) Add(context.Context, []entity.Chunk) error {
	return errors.New("index unavailable")
}

func (brokenIndex) Query(context.Context, string, int) ([]entity.ScoredChunk, error) {
	return nil, errors.New("index unavailable")
}

func (brokenIndex) Count(context.Context) (int, error) {
	return 0, errors.New("index unavailable")
}

func (brokenIndex) Document(context.Context, string) (*entity.DocumentRecord, error) {
	return nil, nil
}

type scriptedLLM struct {
	fragments []string
	err       error
	pingErr   error

	mu     sync.Mutex
	pings  int
	calls  int
	prompt string
}

func (s *scriptedLLM) GenerateStream(ctx context.Context, p string, _ ...llm.Option) (<-chan llm.StreamChunk, error) {
	s.mu.Lock()
	s.calls++
	s.prompt = p
	s.mu.Unlock()

	out := make(chan llm.StreamChunk, len(s.fragments)+1)
	for _, f := range s.fragments {
		out <- llm.StreamChunk{Text: f}
	}
	if s.err != nil {
		out <- llm.StreamChunk{Err: s.err}
	}
	close(out)
	return out, nil
}

func (s *scriptedLLM) Ping(context.Context) error {
	s.mu.Lock()
	s.pings++
	s.mu.Unlock()
	return s.pingErr
}

func (s *scriptedLLM) Model() string { return "scripted" }

type frameSink struct {
	mu     sync.Mutex
	frames []dto.OutboundMessage
}

func (s *frameSink) Emit(_ context.Context, msg dto.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, msg)
	return nil
}

func (s *frameSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Type
	}
	return out
}
