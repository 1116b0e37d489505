package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	STT       STTConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host        string   `envconfig:"HOST" default:"0.0.0.0"`
	Port        int      `envconfig:"PORT" default:"8000"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

type DatabaseConfig struct {
	URL      string `envconfig:"URL"`
	MaxConns int    `envconfig:"MAX_CONNS" default:"10"`
	MinConns int    `envconfig:"MIN_CONNS" default:"1"`
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET"`
}

type LLMConfig struct {
	Provider         string        `envconfig:"PROVIDER" default:"azure"`
	Model            string        `envconfig:"MODEL" default:"gpt-4o-mini"`
	Temperature      float64       `envconfig:"TEMPERATURE" default:"0.1"`
	MaxTokens        int           `envconfig:"MAX_TOKENS" default:"1024"`
	Timeout          time.Duration `envconfig:"TIMEOUT" default:"30s"`
	FallbackProvider string        `envconfig:"FALLBACK_PROVIDER"`
	MaxRetries       int           `envconfig:"MAX_RETRIES" default:"0"`

	Azure     AzureConfig     `ignored:"true"`
	OpenAI    OpenAIConfig    `ignored:"true"`
	Anthropic AnthropicConfig `ignored:"true"`
	Ollama    OllamaConfig    `ignored:"true"`
}

// AzureConfig keeps the variable names of the original deployment
// (AZURE_API_KEY, AZURE_OPENAI_API_VERSION, AZURE_OPENAI_ENDPOINT).
type AzureConfig struct {
	APIKey     string `envconfig:"API_KEY"`
	APIVersion string `envconfig:"OPENAI_API_VERSION"`
	Endpoint   string `envconfig:"OPENAI_ENDPOINT"`
	Deployment string `envconfig:"OPENAI_DEPLOYMENT"`
}

type OpenAIConfig struct {
	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL"`
}

type AnthropicConfig struct {
	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL"`
}

type OllamaConfig struct {
	URL string `envconfig:"URL"`
}

type STTConfig struct {
	Backend       string `envconfig:"BACKEND" default:"local"` // "local" or "openai"
	Model         string `envconfig:"MODEL" default:"whisper-1"`
	Language      string `envconfig:"LANGUAGE"`
	Timestamps    bool   `envconfig:"TIMESTAMPS" default:"false"`
	LocalBaseURL  string `envconfig:"LOCAL_BASE_URL" default:"http://localhost:8178"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIKey     string `ignored:"true"`
}

type UploadConfig struct {
	Dir      string `envconfig:"DIR"` // empty means os.TempDir()
	MaxBytes int64  `envconfig:"MAX_BYTES" default:"33554432"`
}

type RateLimitConfig struct {
	RPS   float64 `envconfig:"RPS" default:"10"`
	Burst int     `envconfig:"BURST" default:"20"`
}

type LogConfig struct {
	Level string `envconfig:"LEVEL" default:"info"`
}

// Load reads the configuration from the environment. Variables found in the
// given dotenv files (".env" when none are given) fill in anything the
// environment does not already set. Missing dotenv files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	sections := []struct {
		prefix string
		target any
	}{
		{"server", &cfg.Server},
		{"database", &cfg.Database},
		{"redis", &cfg.Redis},
		{"auth", &cfg.Auth},
		{"llm", &cfg.LLM},
		{"azure", &cfg.LLM.Azure},
		{"openai", &cfg.LLM.OpenAI},
		{"anthropic", &cfg.LLM.Anthropic},
		{"ollama", &cfg.LLM.Ollama},
		{"stt", &cfg.STT},
		{"upload", &cfg.Upload},
		{"rate_limit", &cfg.RateLimit},
		{"log", &cfg.Log},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.prefix, err)
		}
	}

	cfg.STT.OpenAIKey = cfg.LLM.OpenAI.APIKey
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.FallbackProvider = strings.ToLower(strings.TrimSpace(cfg.LLM.FallbackProvider))
	cfg.STT.Backend = strings.ToLower(strings.TrimSpace(cfg.STT.Backend))

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ConfigurationError reports every required variable that is absent and every
// variable whose value is not accepted.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required env vars: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid env vars: "+strings.Join(e.Invalid, ", "))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// Validate checks that the selected LLM providers and STT backend have what
// they need. It returns a *ConfigurationError listing all problems at once.
func (c *Config) Validate() error {
	cerr := &ConfigurationError{}
	seen := map[string]bool{}
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" && !seen[key] {
			seen[key] = true
			cerr.Missing = append(cerr.Missing, key)
		}
	}

	providers := []string{c.LLM.Provider}
	if c.LLM.FallbackProvider != "" && c.LLM.FallbackProvider != c.LLM.Provider {
		providers = append(providers, c.LLM.FallbackProvider)
	}
	for i, p := range providers {
		switch p {
		case "azure":
			require("AZURE_API_KEY", c.LLM.Azure.APIKey)
			require("AZURE_OPENAI_API_VERSION", c.LLM.Azure.APIVersion)
			require("AZURE_OPENAI_ENDPOINT", c.LLM.Azure.Endpoint)
			if c.LLM.Azure.Endpoint != "" && !strings.Contains(c.LLM.Azure.Endpoint, "/openai/deployments/") {
				require("AZURE_OPENAI_DEPLOYMENT", c.LLM.Azure.Deployment)
			}
		case "openai":
			require("OPENAI_API_KEY", c.LLM.OpenAI.APIKey)
		case "anthropic":
			require("ANTHROPIC_API_KEY", c.LLM.Anthropic.APIKey)
		case "ollama":
			require("OLLAMA_URL", c.LLM.Ollama.URL)
		default:
			key := "LLM_PROVIDER"
			if i > 0 {
				key = "LLM_FALLBACK_PROVIDER"
			}
			cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("%s=%q", key, p))
		}
	}

	switch c.STT.Backend {
	case "local":
		require("STT_LOCAL_BASE_URL", c.STT.LocalBaseURL)
	case "openai":
		require("OPENAI_API_KEY", c.STT.OpenAIKey)
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("STT_BACKEND=%q", c.STT.Backend))
	}

	if c.LLM.Timeout <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("LLM_TIMEOUT=%s", c.LLM.Timeout))
	}
	if c.LLM.MaxTokens <= 0 {
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("LLM_MAX_TOKENS=%d", c.LLM.MaxTokens))
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		return cerr
	}
	return nil
}
