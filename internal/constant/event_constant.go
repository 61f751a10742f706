package constant

import "time"

const (
	// TopicDocumentIndexed is the in-process watermill topic for finished ingestions.
	TopicDocumentIndexed = "document.indexed"

	// EventTypeDocumentIndexed becomes the NATS subject suffix (events.DOCUMENT_INDEXED).
	EventTypeDocumentIndexed = "DOCUMENT_INDEXED"

	// PoisonTopicSuffix names the topic an event lands on once forwarding gives up.
	PoisonTopicSuffix = ".poison"
)

// Forwarding retry policy
const (
	ForwardMaxRetries           = 3
	ForwardRetryInitialInterval = time.Second
	ForwardRetryMaxInterval     = 10 * time.Second
)
