package anthropic

import (
	"context"
	"iter"
	"strings"

	"github.com/Rrens/doc-assistant/internal/llm"
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

const maxTokens = 2048

// Provider implements llm.Provider for Anthropic
type Provider struct {
	apiKey       string
	defaultModel string
	client       anthropicsdk.Client
}

// NewProvider creates a new Anthropic provider. baseURL may be empty.
func NewProvider(apiKey, defaultModel, baseURL string) *Provider {
	if defaultModel == "" {
		defaultModel = "claude-haiku-4-5-20251001"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}

	return &Provider{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       anthropicsdk.NewClient(opts...),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "anthropic"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"claude-haiku-4-5-20251001",
		"claude-sonnet-4-5-20250929",
		"claude-3-5-haiku-20241022",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Stream runs a streaming Messages request and yields text deltas
func (p *Provider) Stream(ctx context.Context, prompt, model string) iter.Seq[string] {
	if model == "" {
		model = p.defaultModel
	}

	return func(yield func(string) bool) {
		if !p.IsConfigured() {
			log.Error().Str("provider", p.Name()).Msg("LLM provider is not configured (missing API key)")
			yield(llm.ErrorToken)
			return
		}

		stream := p.client.Messages.NewStreaming(ctx, anthropicsdk.MessageNewParams{
			Model:     anthropicsdk.Model(model),
			MaxTokens: maxTokens,
			System:    []anthropicsdk.TextBlockParam{{Text: llm.SystemPrompt}},
			Messages: []anthropicsdk.MessageParam{
				anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
			},
		})
		defer stream.Close()

		yielded := false
		for stream.Next() {
			event, ok := stream.Current().AsAny().(anthropicsdk.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := event.Delta.AsAny().(anthropicsdk.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			yielded = true
			if !yield(delta.Text) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("provider", p.Name()).Str("model", model).Msg("LLM stream failed")
			if !yielded {
				yield(llm.ErrorToken)
			}
		}
	}
}
