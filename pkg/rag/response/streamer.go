package response

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/metrics"
	"virtualrag-be/pkg/llm"
	"virtualrag-be/pkg/rag/history"
	"virtualrag-be/pkg/rag/prompt"
)

// EventSink delivers outbound frames to one client in order. Emit blocks
// until the frame is queued or ctx is done.
type EventSink interface {
	Emit(ctx context.Context, msg dto.OutboundMessage) error
}

// GenerationError is a generator fault that was already reported to the client.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Request struct {
	Query   string
	Context string
	History *history.ChatHistory
}

// Streamer relays one generation per call: llm_start, llm_chunk*, llm_end.
type Streamer struct {
	llm           llm.LLMProvider
	prompts       *prompt.Builder
	options       []llm.Option
	historyWindow int
	metrics       *metrics.Metrics
}

func NewStreamer(provider llm.LLMProvider, prompts *prompt.Builder, historyWindow int, m *metrics.Metrics, options ...llm.Option) *Streamer {
	return &Streamer{
		llm:           provider,
		prompts:       prompts,
		options:       options,
		historyWindow: historyWindow,
		metrics:       m,
	}
}

// Stream generates an answer for req and relays it to sink. An empty query is a
// no-op. On success the exchange is appended to req.History and the full answer
// is returned. A *GenerationError means the error and llm_end frames were sent
// and the session may continue; any other error means the sink is gone.
func (s *Streamer) Stream(ctx context.Context, req Request, sink EventSink) (string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return "", nil
	}

	historyBlock := ""
	if req.History != nil {
		historyBlock = req.History.Format(s.historyWindow)
	}
	promptText := s.prompts.Build(historyBlock, req.Context, req.Query)

	if err := sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeLLMStart, "")); err != nil {
		return "", err
	}
	started := time.Now()

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.llm.GenerateStream(genCtx, promptText, s.options...)
	if err != nil {
		return "", s.fail(ctx, sink, started, 0, err)
	}

	var full strings.Builder
	var firstToken time.Duration
	for chunk := range stream {
		if chunk.Err != nil {
			return "", s.fail(ctx, sink, started, firstToken, chunk.Err)
		}
		if chunk.Text == "" {
			continue
		}
		if firstToken == 0 {
			firstToken = time.Since(started)
		}
		if err := sink.Emit(ctx, dto.NewOutboundData(constant.MessageTypeLLMChunk, chunk.Text)); err != nil {
			cancel()
			s.metrics.RecordGeneration("cancelled", time.Since(started), firstToken)
			return "", err
		}
		full.WriteString(chunk.Text)
	}

	// The producer closes without an error chunk when ctx is cancelled
	if err := ctx.Err(); err != nil {
		s.metrics.RecordGeneration("cancelled", time.Since(started), firstToken)
		return "", err
	}

	if err := sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeLLMEnd, "")); err != nil {
		s.metrics.RecordGeneration("cancelled", time.Since(started), firstToken)
		return "", err
	}
	s.metrics.RecordGeneration("success", time.Since(started), firstToken)

	answer := full.String()
	if req.History != nil {
		req.History.Append(constant.ChatMessageRoleUser, req.Query)
		req.History.Append(constant.ChatMessageRoleAssistant, answer)
	}
	return answer, nil
}

// fail reports a generator fault: one error frame, then the closing llm_end.
func (s *Streamer) fail(ctx context.Context, sink EventSink, started time.Time, firstToken time.Duration, cause error) error {
	if errors.Is(cause, context.Canceled) && ctx.Err() != nil {
		s.metrics.RecordGeneration("cancelled", time.Since(started), firstToken)
		return ctx.Err()
	}
	s.metrics.RecordGeneration("error", time.Since(started), firstToken)

	reason := fmt.Sprintf("Error generating response: %v", cause)
	if err := sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeError, reason)); err != nil {
		return err
	}
	if err := sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeLLMEnd, "")); err != nil {
		return err
	}
	return &GenerationError{Err: cause}
}
