package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/Rrens/doc-assistant/internal/config"
	"github.com/Rrens/doc-assistant/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Provider struct {
	apiKey string
	model  string
	opts   []option.ClientOption
}

// NewProvider creates a Gemini provider. Extra client options are appended after
// the API key, e.g. a custom HTTP client.
func NewProvider(cfg config.GeminiConfig, opts ...option.ClientOption) *Provider {
	return &Provider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		opts:   opts,
	}
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) AvailableModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	}
}

func (p *Provider) DefaultModel() string {
	if p.model != "" {
		return p.model
	}
	return "gemini-2.5-flash"
}

func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

// Stream yields the text parts of each streamed candidate
func (p *Provider) Stream(ctx context.Context, prompt, model string) iter.Seq[string] {
	if model == "" {
		model = p.DefaultModel()
	}

	return func(yield func(string) bool) {
		if !p.IsConfigured() {
			log.Error().Str("provider", p.Name()).Msg("gemini provider is not configured (missing API key)")
			yield(llm.ErrorToken)
			return
		}

		opts := append([]option.ClientOption{option.WithAPIKey(p.apiKey)}, p.opts...)
		client, err := genai.NewClient(ctx, opts...)
		if err != nil {
			log.Error().Err(err).Str("provider", p.Name()).Msg("failed to create gemini client")
			yield(llm.ErrorToken)
			return
		}
		defer client.Close()

		generativeModel := client.GenerativeModel(model)
		generativeModel.SystemInstruction = genai.NewUserContent(genai.Text(llm.SystemPrompt))

		it := generativeModel.GenerateContentStream(ctx, genai.Text(prompt))

		yielded := false
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(fmt.Errorf("gemini generation error: %w", err)).
						Str("model", model).
						Msg("LLM stream failed")
				}
				if !yielded && ctx.Err() == nil {
					yield(llm.ErrorToken)
				}
				return
			}

			for _, text := range candidateText(resp) {
				yielded = true
				if !yield(text) {
					return
				}
			}
		}
	}
}

func candidateText(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}

	var out []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok && text != "" {
			out = append(out, string(text))
		}
	}
	return out
}
