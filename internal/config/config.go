package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Config holds all application configuration
type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
	SessionIdleTTL    time.Duration `mapstructure:"session_idle_ttl"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	TextCacheTTL time.Duration `mapstructure:"text_cache_ttl"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMConfig selects the chat backend. Backend accepts the aliases "local"
// (ollama) and "hosted" (openai) as well as provider names.
type LLMConfig struct {
	Backend    string          `mapstructure:"backend" validate:"oneof=local hosted ollama openai anthropic gemini deepseek"`
	ModelName  string          `mapstructure:"model_name"`
	APIBaseURL string          `mapstructure:"api_base_url"`
	APIKey     string          `mapstructure:"api_key"`
	Anthropic  AnthropicConfig `mapstructure:"anthropic"`
	Gemini     GeminiConfig    `mapstructure:"gemini"`
	DeepSeek   DeepSeekConfig  `mapstructure:"deepseek"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type DeepSeekConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ChatConfig bounds prompt size and the archive preview
type ChatConfig struct {
	ContextCapChars     int `mapstructure:"context_cap_chars" validate:"gt=0"`
	ArchivePreviewCount int `mapstructure:"archive_preview_count" validate:"gt=0"`
	ArchivePreviewTurns int `mapstructure:"archive_preview_turns" validate:"gt=0"`
	ArchivePreviewLen   int `mapstructure:"archive_preview_len" validate:"gt=0"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int `mapstructure:"burst" validate:"gte=0"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format       string        `mapstructure:"format" validate:"oneof=console json"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and cross-field requirements
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.LLM.Backend {
	case "hosted", "openai":
		if c.LLM.APIKey == "" {
			return errors.New("invalid config: llm.api_key (OPENAI_API_KEY) is required for the hosted backend")
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return errors.New("invalid config: llm.anthropic.api_key is required for the anthropic backend")
		}
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return errors.New("invalid config: llm.gemini.api_key is required for the gemini backend")
		}
	case "deepseek":
		if c.LLM.DeepSeek.APIKey == "" {
			return errors.New("invalid config: llm.deepseek.api_key is required for the deepseek backend")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s") // streamed responses are unbounded
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.middleware_timeout", "60s")
	v.SetDefault("server.max_upload_bytes", 50<<20)
	v.SetDefault("server.session_idle_ttl", "24h")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.text_cache_ttl", "24h")

	// LLM
	v.SetDefault("llm.backend", "local")
	v.SetDefault("llm.model_name", "") // empty means the backend's own default
	v.SetDefault("llm.api_base_url", "http://localhost:11434")

	// Chat
	v.SetDefault("chat.context_cap_chars", 4000)
	v.SetDefault("chat.archive_preview_count", 3)
	v.SetDefault("chat.archive_preview_turns", 2)
	v.SetDefault("chat.archive_preview_len", 70)

	// Security
	v.SetDefault("security.rate_limit.requests_per_minute", 30)
	v.SetDefault("security.rate_limit.burst", 5)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("env", "ENV")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// LLM backend selection
	v.BindEnv("llm.backend", "LLM_BACKEND")
	v.BindEnv("llm.model_name", "LLM_MODEL")
	v.BindEnv("llm.api_base_url", "OLLAMA_HOST")

	// LLM API Keys
	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")

	v.BindEnv("logging.level", "LOG_LEVEL")
}
