package api

import (
	"net/http"

	"github.com/Rrens/doc-assistant/internal/api/handler"
	customMiddleware "github.com/Rrens/doc-assistant/internal/api/middleware"
	"github.com/Rrens/doc-assistant/internal/config"
	"github.com/Rrens/doc-assistant/internal/extract"
	"github.com/Rrens/doc-assistant/internal/llm"
	"github.com/Rrens/doc-assistant/internal/llm/anthropic"
	"github.com/Rrens/doc-assistant/internal/llm/gemini"
	"github.com/Rrens/doc-assistant/internal/llm/ollama"
	"github.com/Rrens/doc-assistant/internal/llm/openai"
	"github.com/Rrens/doc-assistant/internal/repository/redis"
	"github.com/Rrens/doc-assistant/internal/service"
	"github.com/Rrens/doc-assistant/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil.
func NewRouter(cfg *config.Config, store *session.Store, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Content-Disposition"},
		MaxAge:         300,
	}))

	llmRouter := NewLLMRouter(cfg.LLM)

	// A nil *TextCache must not reach the service as a non-nil interface
	var textCache service.TextCache
	var pinger handler.Pinger
	if redisClient != nil {
		textCache = redis.NewTextCache(redisClient, cfg.Redis.TextCacheTTL)
		pinger = redisClient
	}

	chatService := service.NewChatService(store, extract.New(), llmRouter, textCache, service.ChatOptions{
		Backend:      cfg.LLM.Backend,
		Model:        cfg.LLM.ModelName,
		ContextCap:   cfg.Chat.ContextCapChars,
		PreviewCount: cfg.Chat.ArchivePreviewCount,
		PreviewTurns: cfg.Chat.ArchivePreviewTurns,
		PreviewLen:   cfg.Chat.ArchivePreviewLen,
	})

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(chatService)
	documentHandler := handler.NewDocumentHandler(chatService, cfg.Server.MaxUploadBytes)
	chatHandler := handler.NewChatHandler(chatService)

	var rateLimit func(http.Handler) http.Handler
	if redisClient != nil {
		rateLimiter := redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
		rateLimit = customMiddleware.NewRateLimitMiddleware(rateLimiter).Limit
	}
	timeout := func(r chi.Router) {
		if cfg.Server.MiddlewareTimeout > 0 {
			r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			timeout(r)

			// Health check
			r.Get("/health", handler.HealthCheck)
			r.Get("/ready", handler.ReadyCheck(pinger))

			// LLM providers
			r.Get("/llm-providers", handler.ListLLMProviders(llmRouter))

			// Cache management
			r.Post("/cache/flush", handler.FlushCache(chatService))

			r.Post("/sessions", sessionHandler.Create)
		})

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			// Streaming routes stay outside the request timeout
			r.Group(func(r chi.Router) {
				if rateLimit != nil {
					r.Use(rateLimit)
				}
				r.Post("/chat", chatHandler.Send)
				r.Post("/regenerate", chatHandler.Regenerate)
			})

			r.Group(func(r chi.Router) {
				timeout(r)

				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)

				r.Post("/document", documentHandler.Upload)
				r.Get("/document/text", documentHandler.DownloadText)

				r.Post("/new-chat", sessionHandler.NewChat)
				r.Post("/clear", sessionHandler.Clear)
				r.Get("/archive", sessionHandler.Archive)
				r.Post("/archive/{index}/load", sessionHandler.LoadArchive)
				r.Get("/transcript/export", sessionHandler.ExportTranscript)
			})
		})
	})

	return r
}

// NewLLMRouter registers the local backend plus every hosted backend that has a key.
// The selected backend gets model_name as its default model when one is set.
func NewLLMRouter(cfg config.LLMConfig) *llm.Router {
	llmRouter := llm.NewRouter(cfg.Backend)
	selected := llm.ResolveName(cfg.Backend)

	modelFor := func(name, fallback string) string {
		if name == selected && cfg.ModelName != "" {
			return cfg.ModelName
		}
		return fallback
	}

	log.Info().Str("backend", selected).Str("model", cfg.ModelName).Msg("Initializing LLM providers")

	log.Info().Str("host", cfg.APIBaseURL).Msg("Registering Ollama provider")
	llmRouter.RegisterProvider(ollama.NewProvider(cfg.APIBaseURL, modelFor("ollama", "")))

	if cfg.APIKey != "" {
		llmRouter.RegisterProvider(openai.NewProvider(cfg.APIKey, modelFor("openai", "")))
	}
	if cfg.Anthropic.APIKey != "" {
		llmRouter.RegisterProvider(anthropic.NewProvider(
			cfg.Anthropic.APIKey,
			modelFor("anthropic", cfg.Anthropic.Model),
			cfg.Anthropic.BaseURL,
		))
	}
	if cfg.DeepSeek.APIKey != "" {
		llmRouter.RegisterProvider(openai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, modelFor("deepseek", cfg.DeepSeek.Model)))
	}
	if cfg.Gemini.APIKey != "" {
		geminiCfg := cfg.Gemini
		geminiCfg.Model = modelFor("gemini", geminiCfg.Model)
		log.Info().Int("key_len", len(geminiCfg.APIKey)).Msg("Registering Gemini provider")
		llmRouter.RegisterProvider(gemini.NewProvider(geminiCfg))
	} else {
		log.Debug().Msg("Gemini API key is empty, skipping registration")
	}

	return llmRouter
}
