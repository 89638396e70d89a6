package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AI struct {
		Provider string `yaml:"provider"` // "openai" or "gemini"
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"` // OpenAI-compatible endpoints only
	} `yaml:"ai"`
	Chunking struct {
		MaxTokens int `yaml:"max_tokens"`
	} `yaml:"chunking"`
	Extraction struct {
		Workers        int           `yaml:"workers"`
		MaxAttempts    int           `yaml:"max_attempts"`
		ShrinkFactor   int           `yaml:"shrink_factor"`
		InitialBackoff time.Duration `yaml:"initial_backoff"`
		MaxBackoff     time.Duration `yaml:"max_backoff"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"extraction"`
	Ingest struct {
		MaxPages       int           `yaml:"max_pages"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"ingest"`
	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
	Logging struct {
		Dir   string `yaml:"dir"`
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns a config usable without any config file; the CLI flags
// and environment variables can carry everything else.
func Default() *Config {
	cfg := &Config{}
	cfg.AI.Provider = "openai"
	cfg.AI.Model = "gpt-4o"
	cfg.Chunking.MaxTokens = 3000
	cfg.Extraction.Workers = 4
	cfg.Extraction.MaxAttempts = 3
	cfg.Extraction.ShrinkFactor = 2
	cfg.Extraction.InitialBackoff = time.Second
	cfg.Extraction.MaxBackoff = 30 * time.Second
	cfg.Extraction.RequestTimeout = 60 * time.Second
	cfg.Ingest.MaxPages = 12
	cfg.Ingest.RequestTimeout = 30 * time.Second
	cfg.Output.Dir = "rules"
	cfg.Logging.Dir = "logs"
	cfg.Logging.Level = "info"
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config. A missing file is fine: defaults apply.
	if file, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if apiKey := os.Getenv("RULEGEN_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if provider := os.Getenv("RULEGEN_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if model := os.Getenv("RULEGEN_AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}

	normalize(cfg)
	return cfg, nil
}

// normalize backfills zero values left by partial config files.
func normalize(cfg *Config) {
	def := Default()
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = def.AI.Provider
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = def.AI.Model
	}
	if cfg.Chunking.MaxTokens <= 0 {
		cfg.Chunking.MaxTokens = def.Chunking.MaxTokens
	}
	if cfg.Extraction.Workers <= 0 {
		cfg.Extraction.Workers = def.Extraction.Workers
	}
	if cfg.Extraction.MaxAttempts <= 0 {
		cfg.Extraction.MaxAttempts = def.Extraction.MaxAttempts
	}
	if cfg.Extraction.ShrinkFactor <= 1 {
		cfg.Extraction.ShrinkFactor = def.Extraction.ShrinkFactor
	}
	if cfg.Extraction.InitialBackoff <= 0 {
		cfg.Extraction.InitialBackoff = def.Extraction.InitialBackoff
	}
	if cfg.Extraction.MaxBackoff <= 0 {
		cfg.Extraction.MaxBackoff = def.Extraction.MaxBackoff
	}
	if cfg.Extraction.RequestTimeout <= 0 {
		cfg.Extraction.RequestTimeout = def.Extraction.RequestTimeout
	}
	if cfg.Ingest.MaxPages <= 0 {
		cfg.Ingest.MaxPages = def.Ingest.MaxPages
	}
	if cfg.Ingest.RequestTimeout <= 0 {
		cfg.Ingest.RequestTimeout = def.Ingest.RequestTimeout
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = def.Output.Dir
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = def.Logging.Dir
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}
