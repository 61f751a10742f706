package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/entity"
	"virtualrag-be/internal/metrics"
	"virtualrag-be/internal/pkg/logger"
	"virtualrag-be/internal/repository/memory"
	"virtualrag-be/pkg/loader"
	"virtualrag-be/pkg/lock"
	"virtualrag-be/pkg/utils"
	"virtualrag-be/pkg/vectorstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file type")
	ErrFileTooLarge         = errors.New("file too large")
	ErrNoContent            = errors.New("no content extracted")
)

// ValidationError rejects an upload before anything is written.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IngestionResult is the outcome of one upload that passed validation.
type IngestionResult struct {
	Status      string
	Message     string
	Chunks      int
	ContentHash string
}

type IIngestionService interface {
	// Ingest returns a *ValidationError for rejected uploads, otherwise a result.
	Ingest(ctx context.Context, filename string, data []byte, sessionId string) (*IngestionResult, error)
}

type IngestionOptions struct {
	AllowedExtensions []string
	MaxFileSizeBytes  int64
	MaxFileSizeMB     int
	TempDir           string
}

type ingestionService struct {
	opts        IngestionOptions
	loaders     *loader.Registry
	splitter    utils.TextSplitter
	index       vectorstore.Index
	knownHashes *memory.KnownHashRepository
	locker      lock.Locker
	publisher   IPublisherService
	metrics     *metrics.Metrics
	logger      logger.ILogger
	tracer      trace.Tracer
}

func NewIngestionService(
	opts IngestionOptions,
	loaders *loader.Registry,
	splitter utils.TextSplitter,
	index vectorstore.Index,
	knownHashes *memory.KnownHashRepository,
	locker lock.Locker,
	publisher IPublisherService,
	m *metrics.Metrics,
	log logger.ILogger,
) IIngestionService {
	return &ingestionService{
		opts:        opts,
		loaders:     loaders,
		splitter:    splitter,
		index:       index,
		knownHashes: knownHashes,
		locker:      locker,
		publisher:   publisher,
		metrics:     m,
		logger:      log,
		tracer:      otel.Tracer("virtualrag/ingestion"),
	}
}

func (s *ingestionService) Ingest(ctx context.Context, filename string, data []byte, sessionId string) (*IngestionResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingestion.Ingest", trace.WithAttributes(
		attribute.String("document.filename", filename),
		attribute.Int("document.bytes", len(data)),
	))
	defer span.End()

	// 1. Validate
	ext, err := s.validate(filename, len(data))
	if err != nil {
		s.metrics.RecordIngestion("rejected", 0)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// 2. Extract through a temp file that never outlives this call
	text, err := s.extract(ctx, ext, data)
	if err != nil {
		return s.failed(span, filename, err), nil
	}

	// 3. Deduplicate and index under the hash lock
	hash := contentHash(text)
	span.SetAttributes(attribute.String("document.content_hash", hash))

	unlock, err := s.locker.Lock(ctx, hash)
	if err != nil {
		return s.failed(span, filename, err), nil
	}
	defer unlock()

	duplicate, err := s.isKnown(ctx, hash)
	if err != nil {
		return s.failed(span, filename, err), nil
	}
	if duplicate {
		s.metrics.RecordIngestion(constant.DocumentStatusDuplicate, 0)
		s.logger.Info("Ingestion", "Duplicate document", map[string]interface{}{
			"filename":     filename,
			"content_hash": hash,
			"session_id":   sessionId,
		})
		return &IngestionResult{
			Status:      constant.DocumentStatusDuplicate,
			Message:     fmt.Sprintf("Document '%s' already exists in database", filename),
			ContentHash: hash,
		}, nil
	}

	pieces, err := s.splitter.Split(text)
	if err != nil {
		return s.failed(span, filename, err), nil
	}
	if len(pieces) == 0 {
		return s.failed(span, filename, ErrNoContent), nil
	}

	chunks := buildChunks(hash, filename, pieces)
	if err := s.index.Add(ctx, chunks); err != nil {
		return s.failed(span, filename, err), nil
	}
	s.knownHashes.Mark(hash, filename)

	s.metrics.RecordIngestion(constant.DocumentStatusSuccess, len(chunks))
	s.logger.Info("Ingestion", "Document indexed", map[string]interface{}{
		"filename":     filename,
		"content_hash": hash,
		"chunks":       len(chunks),
		"session_id":   sessionId,
	})
	s.publishIndexed(ctx, hash, filename, len(chunks), sessionId)

	return &IngestionResult{
		Status:      constant.DocumentStatusSuccess,
		Message:     fmt.Sprintf("Added '%s' (%d chunks)", filename, len(chunks)),
		Chunks:      len(chunks),
		ContentHash: hash,
	}, nil
}

func (s *ingestionService) validate(filename string, size int) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(s.opts.AllowedExtensions, ext) || !s.loaders.Supports(ext) {
		return "", &ValidationError{
			Err:     ErrUnsupportedExtension,
			Message: fmt.Sprintf("Unsupported file type: %s", ext),
		}
	}
	if int64(size) > s.opts.MaxFileSizeBytes {
		return "", &ValidationError{
			Err:     ErrFileTooLarge,
			Message: fmt.Sprintf("File too large: %.2fMB (max: %dMB)", float64(size)/(1024*1024), s.opts.MaxFileSizeMB),
		}
	}
	return ext, nil
}

func (s *ingestionService) extract(ctx context.Context, ext string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.opts.TempDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return s.loaders.Extract(ctx, ext, tmp.Name())
}

// isKnown checks the in-memory set first and falls back to the index, which
// survives restarts. A hit from the index warms the set.
func (s *ingestionService) isKnown(ctx context.Context, hash string) (bool, error) {
	if _, found := s.knownHashes.Contains(hash); found {
		return true, nil
	}
	record, err := s.index.Document(ctx, hash)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	s.knownHashes.Mark(hash, record.Filename)
	return true, nil
}

func (s *ingestionService) failed(span trace.Span, filename string, err error) *IngestionResult {
	s.metrics.RecordIngestion(constant.DocumentStatusError, 0)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Error("Ingestion", "Document ingestion failed", map[string]interface{}{
		"filename": filename,
		"error":    err,
	})

	message := "Error processing document: " + err.Error()
	if errors.Is(err, ErrNoContent) {
		message = constant.MessageNoContent
	}
	return &IngestionResult{Status: constant.DocumentStatusError, Message: message}
}

func (s *ingestionService) publishIndexed(ctx context.Context, hash, filename string, chunks int, sessionId string) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(dto.DocumentIndexedMessage{
		ContentHash: hash,
		Filename:    filename,
		ChunkCount:  chunks,
		SessionId:   sessionId,
		IndexedAt:   time.Now(),
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.logger.Warn("Ingestion", "Failed to publish document indexed message", map[string]interface{}{
			"content_hash": hash,
			"error":        err.Error(),
		})
	}
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func buildChunks(hash, filename string, pieces []string) []entity.Chunk {
	chunks := make([]entity.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = entity.Chunk{
			Id:          entity.ChunkID(hash, i),
			Content:     piece,
			Filename:    filename,
			ContentHash: hash,
			ChunkIndex:  i,
			TotalChunks: len(pieces),
		}
	}
	return chunks
}
