package service

import (
	"context"
	"time"

	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/pkg/logger"
	"virtualrag-be/internal/repository/memory"
	"virtualrag-be/pkg/llm"
	"virtualrag-be/pkg/vectorstore"

	"golang.org/x/sync/singleflight"
)

const llmProbeTimeout = 5 * time.Second

// SessionStats is the live-session view the health endpoints report.
type SessionStats interface {
	ActiveSessions() int
	ChatMessages() int
}

type IHealthService interface {
	Health(ctx context.Context) dto.HealthResponse
	Stats(ctx context.Context) dto.StatsResponse
}

type healthService struct {
	index       vectorstore.Index
	knownHashes *memory.KnownHashRepository
	llm         llm.LLMProvider
	sessions    SessionStats
	logger      logger.ILogger
	probe       singleflight.Group
}

func NewHealthService(
	index vectorstore.Index,
	knownHashes *memory.KnownHashRepository,
	provider llm.LLMProvider,
	sessions SessionStats,
	log logger.ILogger,
) IHealthService {
	return &healthService{
		index:       index,
		knownHashes: knownHashes,
		llm:         provider,
		sessions:    sessions,
		logger:      log,
	}
}

func (s *healthService) Health(ctx context.Context) dto.HealthResponse {
	return dto.HealthResponse{
		Status:         "healthy",
		ActiveSessions: s.sessions.ActiveSessions(),
		IndexChunks:    s.chunkCount(ctx),
		LLMAvailable:   s.llmAvailable(ctx),
	}
}

func (s *healthService) Stats(ctx context.Context) dto.StatsResponse {
	return dto.StatsResponse{
		TotalChunks:     s.chunkCount(ctx),
		UniqueDocuments: s.documentCount(ctx),
		LLMAvailable:    s.llmAvailable(ctx),
		LLMModel:        s.llm.Model(),
		ActiveSessions:  s.sessions.ActiveSessions(),
		ChatMessages:    s.sessions.ChatMessages(),
	}
}

func (s *healthService) chunkCount(ctx context.Context) int {
	count, err := s.index.Count(ctx)
	if err != nil {
		s.logger.Warn("HealthService", "Failed to count index", map[string]interface{}{"error": err.Error()})
		return 0
	}
	return count
}

// documentCount prefers the backend's own document count and falls back to
// the hashes seen by this process.
func (s *healthService) documentCount(ctx context.Context) int {
	known := s.knownHashes.Count()
	counter, ok := s.index.(vectorstore.DocumentCounter)
	if !ok {
		return known
	}
	count, err := counter.DocumentCount(ctx)
	if err != nil {
		s.logger.Warn("HealthService", "Failed to count documents", map[string]interface{}{"error": err.Error()})
		return known
	}
	return max(count, known)
}

// llmAvailable pings the generator. Concurrent callers share one probe.
func (s *healthService) llmAvailable(ctx context.Context) bool {
	v, _, _ := s.probe.Do("ping", func() (interface{}, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), llmProbeTimeout)
		defer cancel()
		return s.llm.Ping(probeCtx) == nil, nil
	})
	return v.(bool)
}
