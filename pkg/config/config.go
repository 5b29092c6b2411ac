// Package config provides explicit configuration loading for the nutracoach service.
// Config is constructed once at process start and passed by reference; no package
// reads configuration ambiently at call time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported LLM provider identifiers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGoogle    = "google"
)

// Default model names per provider.
const (
	ModelClaudeSonnetLatest = "claude-sonnet-4-20250514"
	ModelGPT4o              = "gpt-4o"
	ModelGeminiFlash        = "gemini-2.0-flash"
	ModelLlama3             = "llama3.1"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig holds provider selection and generation parameters.
// API keys are always sourced from the environment, never from the YAML file.
type LLMConfig struct {
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	OllamaHost     string        `yaml:"ollama_host"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float32       `yaml:"temperature"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	APIKey string `yaml:"-"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds session token settings.
// TokenSecret comes from the NUTRACOACH_TOKEN_SECRET environment variable.
type AuthConfig struct {
	TokenTTL    time.Duration `yaml:"token_ttl"`
	TokenSecret string        `yaml:"-"`
}

// FoodDataConfig holds settings for the external nutrition database lookup.
type FoodDataConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	APIKey  string        `yaml:"-"`
}

// WorkerConfig holds background chat-task settings.
type WorkerConfig struct {
	Workers    int           `yaml:"workers"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	ResultTTL  time.Duration `yaml:"result_ttl"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	PrometheusURL string `yaml:"prometheus_url"`
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	FoodData FoodDataConfig `yaml:"food_data"`
	Worker   WorkerConfig   `yaml:"worker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Provider:       ProviderAnthropic,
			Model:          "",
			OllamaHost:     "http://localhost:11434",
			MaxTokens:      1024,
			Temperature:    0.3,
			RequestTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "nutracoach.db",
		},
		Auth: AuthConfig{
			TokenTTL: 5 * time.Hour,
		},
		FoodData: FoodDataConfig{
			BaseURL: "https://api.nal.usda.gov/fdc/v1",
			Timeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			Workers:    2,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
			ResultTTL:  time.Hour,
		},
		Metrics: MetricsConfig{
			PrometheusURL: "http://localhost:9090",
		},
	}
}

// Load reads configuration from the YAML file at path (optional) and applies
// environment overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the file-derived config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NUTRACOACH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("NUTRACOACH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NUTRACOACH_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("NUTRACOACH_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.LLM.OllamaHost = v
	}
	if v := os.Getenv("NUTRACOACH_TOKEN_SECRET"); v != "" {
		cfg.Auth.TokenSecret = v
	}
	if v := os.Getenv("USDA_API_KEY"); v != "" {
		cfg.FoodData.APIKey = v
	}
	if v := os.Getenv("PROMETHEUS_URL"); v != "" {
		cfg.Metrics.PrometheusURL = v
	}

	cfg.LLM.APIKey = providerAPIKey(cfg.LLM.Provider)

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}
}

// providerAPIKey returns the environment API key for the given provider.
func providerAPIKey(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderGoogle:
		return os.Getenv("GEMINI_API_KEY")
	case ProviderOllama:
		return "" // Local runtime, no key
	default:
		return ""
	}
}

// defaultModel returns the default model name for the given provider.
func defaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return ModelClaudeSonnetLatest
	case ProviderOpenAI:
		return ModelGPT4o
	case ProviderGoogle:
		return ModelGeminiFlash
	case ProviderOllama:
		return ModelLlama3
	default:
		return ""
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGoogle:
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	if c.LLM.Provider != ProviderOllama && c.LLM.APIKey == "" {
		return fmt.Errorf("missing API key for provider %s (set the provider's environment variable)", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.LLM.Temperature < 0.0 || c.LLM.Temperature > 2.0 {
		return fmt.Errorf("llm.temperature must be between 0.0 and 2.0")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("missing NUTRACOACH_TOKEN_SECRET")
	}
	if c.Worker.Workers <= 0 {
		return fmt.Errorf("worker.workers must be positive")
	}
	return nil
}
