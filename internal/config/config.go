package config

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the sync engine and its collaborators.
type Config struct {
	// APIBaseURL is the REST base address, e.g. "https://chat.example.com".
	APIBaseURL string `yaml:"api_base_url" validate:"required,url"`

	// PushURL optionally overrides the push channel address. When empty the
	// push address is derived from APIBaseURL by rewriting the scheme
	// (http to ws, https to wss).
	PushURL string `yaml:"push_url" validate:"omitempty,url"`

	// Token is the bearer credential. May be empty; only opening the push
	// channel requires it.
	Token string `yaml:"token"`

	// TypingIdleMs is the typing inactivity window in milliseconds.
	TypingIdleMs int `yaml:"typing_idle_ms" validate:"omitempty,min=100"`
}

// New loads configuration from environment variables, with an optional .env
// file for development.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIBaseURL: os.Getenv("CHATSYNC_API_URL"),
		PushURL:    os.Getenv("CHATSYNC_PUSH_URL"),
		Token:      os.Getenv("CHATSYNC_TOKEN"),
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8000"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewFromFile loads configuration from a YAML file, then overlays any
// environment variables that are set. Environment always wins so deployed
// settings can override a checked-in file.
func NewFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if v := os.Getenv("CHATSYNC_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("CHATSYNC_PUSH_URL"); v != "" {
		cfg.PushURL = v
	}
	if v := os.Getenv("CHATSYNC_TOKEN"); v != "" {
		cfg.Token = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
