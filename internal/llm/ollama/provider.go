package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/Rrens/doc-assistant/internal/llm"
	"github.com/rs/zerolog/log"
)

const maxLineSize = 1 << 20

// Provider implements llm.Provider for a local Ollama server
type Provider struct {
	host         string
	defaultModel string
	client       *http.Client
}

// NewProvider creates a new Ollama provider. The HTTP client has no overall
// timeout; generation length is unbounded and cancellation comes from ctx.
func NewProvider(host, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "tinyllama"
	}
	return &Provider{
		host:         strings.TrimRight(host, "/"),
		defaultModel: defaultModel,
		client:       &http.Client{},
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "ollama"
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return []string{
		"tinyllama",
		"llama3",
		"llama3.1",
		"llama3.2",
		"mistral",
		"mixtral",
		"phi3",
		"qwen2",
	}
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has a host to talk to
func (p *Provider) IsConfigured() bool {
	return p.host != ""
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Stream posts the prompt to /api/generate and yields the "response" field of
// each newline-delimited JSON object.
func (p *Provider) Stream(ctx context.Context, prompt, model string) iter.Seq[string] {
	if model == "" {
		model = p.defaultModel
	}

	return func(yield func(string) bool) {
		resp, err := p.open(ctx, prompt, model)
		if err != nil {
			log.Error().Err(err).Str("provider", p.Name()).Str("model", model).Msg("LLM request failed")
			yield(llm.ErrorToken)
			return
		}
		defer resp.Body.Close()

		yielded := false
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk generateChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				log.Warn().Err(err).Str("provider", p.Name()).Msg("Malformed stream chunk, ending stream")
				return
			}

			if chunk.Error != "" {
				log.Error().Str("provider", p.Name()).Str("error", chunk.Error).Msg("LLM stream reported error")
				if !yielded {
					yield(llm.ErrorToken)
				}
				return
			}

			if chunk.Response != "" {
				yielded = true
				if !yield(chunk.Response) {
					return
				}
			}

			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("LLM stream interrupted")
		}
	}
}

func (p *Provider) open(ctx context.Context, prompt, model string) (*http.Response, error) {
	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	return resp, nil
}
