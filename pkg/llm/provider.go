package llm

import (
	"context"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// Apply folds opts over the defaults.
func Apply(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// StreamChunk is one element of a generation stream. A chunk with Err set is
// terminal: the producer closes the channel right after sending it.
type StreamChunk struct {
	Text string
	Err  error
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// GenerateStream starts a completion and yields fragments in generation order.
	// An error return means no fragment was produced. Cancelling ctx stops the producer.
	GenerateStream(ctx context.Context, prompt string, options ...Option) (<-chan StreamChunk, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Model is the default model identifier.
	Model() string
}
