package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/pkg/logger"
	"virtualrag-be/internal/pkg/serverutils"
	"virtualrag-be/internal/service"
	"virtualrag-be/pkg/rag/history"
	"virtualrag-be/pkg/rag/response"
)

type State int32

const (
	StateConnected State = iota
	StateAuthenticated
	// StateRejected follows a failed auth; the connection closes after a grace delay.
	StateRejected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type transitionKey struct {
	state   State
	msgType string
}

type transitionHandler func(s *Session, ctx context.Context, msg *dto.InboundMessage) error

// transitions lists every accepted (state, message type) pair.
var transitions = map[transitionKey]transitionHandler{
	{StateConnected, constant.MessageTypeAuth}:           (*Session).handleAuth,
	{StateAuthenticated, constant.MessageTypeQuery}:      (*Session).handleQuery,
	{StateAuthenticated, constant.MessageTypeDisconnect}: (*Session).handleDisconnect,
}

// SessionDeps are the shared services every session dispatches to.
type SessionDeps struct {
	Auth              service.IAuthService
	Chat              service.IChatService
	Logger            logger.ILogger
	MaxHistory        int
	FailureCloseDelay time.Duration
}

// Session is the protocol state of one connection. Handle is serialized by
// the readiness gate, so at most one pipeline runs per session.
type Session struct {
	Id      string
	deps    SessionDeps
	sink    response.EventSink
	history *history.ChatHistory
	state   atomic.Int32

	// gate holds a token while the session is ready for input
	gate chan struct{}

	// closeAfter asks the transport to close the connection after a delay
	closeAfter func(time.Duration)
}

func NewSession(id string, deps SessionDeps, sink response.EventSink, closeAfter func(time.Duration)) *Session {
	s := &Session{
		Id:         id,
		deps:       deps,
		sink:       sink,
		history:    history.New(deps.MaxHistory),
		gate:       make(chan struct{}, 1),
		closeAfter: closeAfter,
	}
	s.gate <- struct{}{}
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// MarkClosed is called by the transport once the connection is gone.
func (s *Session) MarkClosed() {
	s.setState(StateClosed)
}

func (s *Session) History() *history.ChatHistory {
	return s.history
}

// Handle waits for the session to be ready, then processes one raw frame to
// completion. It returns an error only when the client can no longer be reached.
func (s *Session) Handle(ctx context.Context, raw []byte) error {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { s.gate <- struct{}{} }()

	if s.State() == StateClosed {
		return nil
	}

	var msg dto.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return s.emitError(ctx, constant.MessageInvalidJSON)
	}
	if err := serverutils.ValidateRequest(msg); err != nil {
		return s.emitError(ctx, "Invalid message: "+err.Error())
	}

	state := s.State()
	if handler, ok := transitions[transitionKey{state, msg.Type}]; ok {
		return handler(s, ctx, &msg)
	}
	return s.rejectTransition(ctx, state, msg.Type)
}

func (s *Session) rejectTransition(ctx context.Context, state State, msgType string) error {
	switch state {
	case StateConnected, StateRejected:
		return s.emitError(ctx, constant.MessageNotAuthenticated)
	case StateAuthenticated:
		if msgType == constant.MessageTypeAuth {
			return s.emitError(ctx, constant.MessageAlreadyAuthed)
		}
		return s.emitError(ctx, "Unknown message type: "+msgType)
	default:
		return nil
	}
}

func (s *Session) handleAuth(ctx context.Context, msg *dto.InboundMessage) error {
	if s.deps.Auth.Verify(msg.Password) {
		s.setState(StateAuthenticated)
		s.deps.Logger.Info("Session", "Authenticated", map[string]interface{}{"session_id": s.Id})
		return s.sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeAuthSuccess, constant.MessageAuthSuccess))
	}

	s.setState(StateRejected)
	s.deps.Logger.Warn("Session", "Authentication failed", map[string]interface{}{"session_id": s.Id})
	if err := s.sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeAuthFailed, constant.MessageAuthFailed)); err != nil {
		return err
	}
	s.closeAfter(s.deps.FailureCloseDelay)
	return nil
}

func (s *Session) handleQuery(ctx context.Context, msg *dto.InboundMessage) error {
	started := time.Now()
	err := s.deps.Chat.ProcessQuery(ctx, service.QueryRequest{
		SessionId: s.Id,
		Query:     msg.Query,
		Documents: msg.Documents,
		History:   s.history,
	}, s.sink)

	s.deps.Logger.Debug("Session", "Query processed", map[string]interface{}{
		"session_id": s.Id,
		"documents":  len(msg.Documents),
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
	return err
}

func (s *Session) handleDisconnect(ctx context.Context, _ *dto.InboundMessage) error {
	s.setState(StateClosed)
	if err := s.sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeDisconnectAck, constant.MessageGoodbye)); err != nil {
		return err
	}
	s.closeAfter(0)
	return nil
}

func (s *Session) emitError(ctx context.Context, message string) error {
	return s.sink.Emit(ctx, dto.NewOutbound(constant.MessageTypeError, message))
}
