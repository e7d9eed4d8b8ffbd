package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Question sources selectable with quiz.source.
const (
	SourceLLM    = "llm"
	SourceBank   = "bank"
	SourceStatic = "static"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	LLM struct {
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		Timeout    string `yaml:"timeout"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"llm"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		Source          string `yaml:"source"`
		CacheTTL        string `yaml:"cache_ttl"`
		GenerateTimeout string `yaml:"generate_timeout"`
	} `yaml:"quiz"`
	Documents struct {
		MaxChars       int    `yaml:"max_chars"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
		TTL            string `yaml:"ttl"`
	} `yaml:"documents"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Mode = "dev"
	cfg.LLM.BaseURL = "https://api.groq.com/openai"
	cfg.LLM.Model = "llama-3.3-70b-versatile"
	cfg.LLM.Timeout = "60s"
	cfg.LLM.MaxRetries = 2
	cfg.Quiz.Source = SourceLLM
	cfg.Quiz.GenerateTimeout = "90s"
	cfg.Documents.MaxChars = 4000
	cfg.Documents.MaxUploadBytes = 10 << 20
	cfg.Documents.TTL = "1h"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// environment overrides (a .env file is loaded first when present).
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v := firstEnv("QUIZ_LLM_API_KEY", "GROQ_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("QUIZ_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("QUIZ_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Quiz.Source {
	case SourceLLM:
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url cannot be empty when quiz.source is %q", SourceLLM)
		}
	case SourceBank:
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres.url is required when quiz.source is %q", SourceBank)
		}
	case SourceStatic:
	default:
		return fmt.Errorf("unknown quiz.source %q", c.Quiz.Source)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	if c.Documents.MaxChars <= 0 {
		return fmt.Errorf("documents.max_chars must be positive")
	}
	if c.Documents.MaxUploadBytes <= 0 {
		return fmt.Errorf("documents.max_upload_bytes must be positive")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
