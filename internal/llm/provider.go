package llm

import (
	"context"
	"iter"
)

const (
	// ErrorToken is the single chunk yielded when a backend cannot be reached
	ErrorToken = "❌ Error talking to LLaMA."

	// SystemPrompt is sent as the system message by chat-style backends
	SystemPrompt = "You are a helpful research assistant."
)

// Provider defines the interface for LLM backends
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Stream sends the prompt and yields response fragments as they arrive.
	// Transport failures never surface as errors: a stream that fails before its
	// first fragment yields ErrorToken, a later failure just ends the stream.
	// Stopping the range loop or cancelling ctx releases the connection.
	Stream(ctx context.Context, prompt, model string) iter.Seq[string]
}

// ErrorStream returns a stream holding only ErrorToken
func ErrorStream() iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(ErrorToken)
	}
}
