package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/pkg/logger"
	"virtualrag-be/internal/pkg/serverutils"
	"virtualrag-be/pkg/rag/history"
	"virtualrag-be/pkg/rag/response"
)

// QueryRequest is one decoded query frame plus the session it arrived on.
type QueryRequest struct {
	SessionId string
	Query     string
	Documents []dto.DocumentUpload
	History   *history.ChatHistory
}

type IChatService interface {
	// ProcessQuery runs ingestion, retrieval and generation for one frame,
	// reporting every outcome through sink. It only returns an error when the
	// sink can no longer deliver frames.
	ProcessQuery(ctx context.Context, req QueryRequest, sink response.EventSink) error
}

type chatService struct {
	ingestion IIngestionService
	retrieval IRetrievalService
	streamer  *response.Streamer
	topK      int
	logger    logger.ILogger
}

func NewChatService(
	ingestion IIngestionService,
	retrieval IRetrievalService,
	streamer *response.Streamer,
	topK int,
	log logger.ILogger,
) IChatService {
	return &chatService{
		ingestion: ingestion,
		retrieval: retrieval,
		streamer:  streamer,
		topK:      topK,
		logger:    log,
	}
}

func (s *chatService) ProcessQuery(ctx context.Context, req QueryRequest, sink response.EventSink) error {
	hasQuery := strings.TrimSpace(req.Query) != ""
	if !hasQuery && len(req.Documents) == 0 {
		return sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeError, constant.MessageEmptyQuery))
	}

	// 1. Attachments, one report each. Failures never stop the query.
	for i := range req.Documents {
		if err := s.ingestDocument(ctx, req.SessionId, &req.Documents[i], sink); err != nil {
			return err
		}
	}

	if !hasQuery {
		return nil
	}

	// 2. Retrieval. An unavailable index degrades to no context.
	results, err := s.retrieval.Retrieve(ctx, req.Query, s.topK)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("ChatService", "Retrieval failed, answering without context", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
		results = nil
	}
	if len(results) > 0 {
		err := sink.Emit(ctx, dto.NewOutboundData(constant.MessageTypeRagResults, dto.RagResultsData{
			NumResults: len(results),
			Sources:    Sources(results),
		}))
		if err != nil {
			return err
		}
	}

	// 3. Generation
	_, err = s.streamer.Stream(ctx, response.Request{
		Query:   req.Query,
		Context: FormatContext(results),
		History: req.History,
	}, sink)

	var genErr *response.GenerationError
	if errors.As(err, &genErr) {
		s.logger.Warn("ChatService", "Generation failed", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      genErr.Err.Error(),
		})
		return nil
	}
	return err
}

func (s *chatService) ingestDocument(ctx context.Context, sessionId string, doc *dto.DocumentUpload, sink response.EventSink) error {
	if err := serverutils.ValidateRequest(doc); err != nil {
		return emitDocumentStatus(ctx, sink, constant.DocumentStatusError, fmt.Sprintf("Invalid document '%s': %v", doc.Filename, err), 0)
	}

	data, err := base64.StdEncoding.DecodeString(doc.Content)
	if err != nil {
		return emitDocumentStatus(ctx, sink, constant.DocumentStatusError, fmt.Sprintf("Invalid document '%s': content is not valid base64", doc.Filename), 0)
	}

	result, err := s.ingestion.Ingest(ctx, doc.Filename, data, sessionId)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeError, verr.Message))
		}
		return emitDocumentStatus(ctx, sink, constant.DocumentStatusError, "Error processing document: "+err.Error(), 0)
	}

	return emitDocumentStatus(ctx, sink, result.Status, result.Message, result.Chunks)
}

func emitDocumentStatus(ctx context.Context, sink response.EventSink, status, message string, chunks int) error {
	return sink.Emit(ctx, dto.NewOutboundData(constant.MessageTypeDocumentStatus, dto.DocumentStatusData{
		Status:  status,
		Message: message,
		Chunks:  chunks,
	}))
}
