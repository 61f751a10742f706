package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/pkg/logger"
	"virtualrag-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// EventForwarder is the external bus. *nats.Publisher satisfies it.
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

// ConsumerRetry bounds how often a failed forward is retried before the
// event is moved to the poison topic.
type ConsumerRetry struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type consumerService struct {
	subscriber message.Subscriber
	publisher  message.Publisher
	topicName  string
	retry      ConsumerRetry
	forwarder  EventForwarder
	logger     logger.ILogger
	wmLogger   watermill.LoggerAdapter
}

// NewConsumerService consumes DocumentIndexed messages. forwarder may be nil.
// publisher receives events that exhausted their retries.
func NewConsumerService(
	subscriber message.Subscriber,
	publisher message.Publisher,
	topicName string,
	retry ConsumerRetry,
	forwarder EventForwarder,
	log logger.ILogger,
	wmLogger watermill.LoggerAdapter,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		publisher:  publisher,
		topicName:  topicName,
		retry:      retry,
		forwarder:  forwarder,
		logger:     log,
		wmLogger:   wmLogger,
	}
}

// Consume starts the router and returns once its handlers are subscribed.
// The router stops when ctx is cancelled.
func (cs *consumerService) Consume(ctx context.Context) error {
	router, err := message.NewRouter(message.RouterConfig{}, cs.wmLogger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	poisonTopic := cs.topicName + constant.PoisonTopicSuffix
	poisonQueue, err := middleware.PoisonQueue(cs.publisher, poisonTopic)
	if err != nil {
		return fmt.Errorf("create poison queue: %w", err)
	}

	// Retry runs inside the poison queue, so only the final failure is poisoned
	router.AddMiddleware(
		poisonQueue,
		middleware.Retry{
			MaxRetries:      cs.retry.MaxRetries,
			InitialInterval: cs.retry.InitialInterval,
			MaxInterval:     cs.retry.MaxInterval,
			Multiplier:      2,
			Logger:          cs.wmLogger,
		}.Middleware,
		middleware.Recoverer,
	)

	router.AddNoPublisherHandler("document_indexed_forwarder", cs.topicName, cs.subscriber, cs.processMessage)
	router.AddNoPublisherHandler("document_indexed_poison", poisonTopic, cs.subscriber, cs.dropPoisoned)

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	select {
	case <-router.Running():
		return nil
	case err := <-errCh:
		if err == nil {
			err = ctx.Err()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *consumerService) processMessage(msg *message.Message) error {
	var payload dto.DocumentIndexedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal message", map[string]interface{}{"error": err})
		return nil // Ack invalid messages to prevent infinite retry
	}

	cs.logger.Info("Consumer", "Document indexed", map[string]interface{}{
		"content_hash": payload.ContentHash,
		"filename":     payload.Filename,
		"chunks":       payload.ChunkCount,
		"session_id":   payload.SessionId,
	})

	if cs.forwarder == nil {
		return nil
	}

	evt := events.NewEvent(constant.EventTypeDocumentIndexed, map[string]interface{}{
		"content_hash": payload.ContentHash,
		"filename":     payload.Filename,
		"chunk_count":  payload.ChunkCount,
		"session_id":   payload.SessionId,
	}, payload.IndexedAt)

	if err := cs.forwarder.Publish(msg.Context(), evt); err != nil {
		cs.logger.Warn("Consumer", "Failed to forward event", map[string]interface{}{
			"content_hash": payload.ContentHash,
			"error":        err.Error(),
		})
		return fmt.Errorf("forward event: %w", err)
	}
	return nil
}

func (cs *consumerService) dropPoisoned(msg *message.Message) error {
	cs.logger.Error("Consumer", "Dropped event after retries", map[string]interface{}{
		"message_uuid": msg.UUID,
		"reason":       msg.Metadata.Get(middleware.ReasonForPoisonedKey),
	})
	return nil
}
