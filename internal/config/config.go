package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8090"`

	// Postgres
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Filesystem roots
	StorageRoot  string `envconfig:"STORAGE_ROOT" default:"./data/documents"`
	UploadsRoot  string `envconfig:"UPLOADS_ROOT" default:"./data/uploads"`
	TemplatesDir string `envconfig:"TEMPLATES_DIR" default:"./templates"`

	// Auth
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Language model
	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL"`
	Model         string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMTimeout    time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	return nil
}
