package openai

import (
	"context"
	"iter"
	"strings"

	"github.com/Rrens/doc-assistant/internal/llm"
	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog/log"
)

// Provider implements llm.Provider for OpenAI-compatible chat completion APIs
type Provider struct {
	name         string
	apiKey       string
	defaultModel string
	baseURL      string
	models       []string
	client       openaisdk.Client
}

// Option customizes a Provider
type Option func(*Provider)

// WithName overrides the provider identifier
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithModels replaces the advertised model list
func WithModels(models ...string) Option {
	return func(p *Provider) { p.models = models }
}

// NewProvider creates a new OpenAI provider
func NewProvider(apiKey, defaultModel string, opts ...Option) *Provider {
	if defaultModel == "" {
		defaultModel = "gpt-3.5-turbo"
	}
	p := &Provider{
		name:         "openai",
		apiKey:       apiKey,
		defaultModel: defaultModel,
		models: []string{
			"gpt-3.5-turbo",
			"gpt-4o",
			"gpt-4o-mini",
			"gpt-4-turbo",
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL+"/"))
	}
	p.client = openaisdk.NewClient(clientOpts...)

	return p
}

// NewDeepSeekProvider creates a provider for the OpenAI-compatible DeepSeek API
func NewDeepSeekProvider(apiKey, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	return NewProvider(apiKey, defaultModel,
		WithName("deepseek"),
		WithBaseURL("https://api.deepseek.com/v1"),
		WithModels("deepseek-chat", "deepseek-reasoner"),
	)
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return p.name
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return p.models
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Stream runs a streaming chat completion with the research assistant system
// message and the prompt as the single user message.
func (p *Provider) Stream(ctx context.Context, prompt, model string) iter.Seq[string] {
	if model == "" {
		model = p.defaultModel
	}

	return func(yield func(string) bool) {
		if !p.IsConfigured() {
			log.Error().Str("provider", p.name).Msg("LLM provider is not configured (missing API key)")
			yield(llm.ErrorToken)
			return
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, openaisdk.ChatCompletionNewParams{
			Model: openaisdk.ChatModel(model),
			Messages: []openaisdk.ChatCompletionMessageParamUnion{
				openaisdk.SystemMessage(llm.SystemPrompt),
				openaisdk.UserMessage(prompt),
			},
		})
		defer stream.Close()

		yielded := false
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			content := chunk.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			yielded = true
			if !yield(content) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("provider", p.name).Str("model", model).Msg("LLM stream failed")
			if !yielded {
				yield(llm.ErrorToken)
			}
		}
	}
}
