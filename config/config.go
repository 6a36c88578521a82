// Package config handles loading the server configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/codecritic/codecritic/llm"
	"github.com/codecritic/codecritic/review"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the default path for the config file.
	DefaultConfigPath = "codecritic.yml"

	// DefaultAddr is the listen address when neither the file nor PORT sets one.
	DefaultAddr = ":8000"

	// DefaultTokenTTL is how long an access token stays valid.
	DefaultTokenTTL = 7 * 24 * time.Hour

	// DefaultFrontendURL is where verification links point.
	DefaultFrontendURL = "http://localhost:3000"

	// MinTimeout and MaxTimeout bound the per-request model timeout.
	MinTimeout = time.Second
	MaxTimeout = 10 * time.Minute
)

// ConfigParseError indicates a configuration file exists but contains invalid content.
// This is distinct from "file not found" errors, which should use default config.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("invalid config at %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// Config is the complete server configuration.
// Secrets are never read from YAML; see ApplyEnv.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Review   ReviewConfig   `yaml:"review"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Privacy  PrivacyConfig  `yaml:"privacy"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelConfig selects the hosted model.
type ModelConfig struct {
	// Provider is "openrouter" or "anthropic".
	Provider string        `yaml:"provider"`
	Name     string        `yaml:"name"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	APIKey   string        `yaml:"-"`
}

// ReviewConfig tunes the review pipeline.
type ReviewConfig struct {
	Temperature       float64     `yaml:"temperature"`
	MaxTokens         int         `yaml:"max_tokens"`
	ChatMaxTokens     int         `yaml:"chat_max_tokens"`
	ChatHistoryWindow int         `yaml:"chat_history_window"`
	MaxConcurrent     int         `yaml:"max_concurrent"`
	Retry             RetryConfig `yaml:"retry"`
}

// RetryConfig bounds retries of a failed review.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// DatabaseConfig selects the store. DSN (Postgres) comes from DATABASE_URL;
// SQLitePath is used by the local server.
type DatabaseConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	DSN        string `yaml:"-"`
}

// AuthConfig configures accounts and bearer tokens.
type AuthConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
	// RequireVerification rejects logins until the email is verified.
	RequireVerification bool   `yaml:"require_verification"`
	SecretKey           string `yaml:"-"`
}

// EmailConfig configures verification emails.
type EmailConfig struct {
	FromEmail   string `yaml:"from_email"`
	FromName    string `yaml:"from_name"`
	FrontendURL string `yaml:"frontend_url"`
	BrevoAPIKey string `yaml:"-"`
}

// PrivacyConfig controls what leaves the process.
type PrivacyConfig struct {
	RedactSecrets bool `yaml:"redact_secrets"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 30 * time.Second,
		},
		Model: ModelConfig{
			Provider: llm.ProviderOpenRouter,
			Timeout:  llm.DefaultTimeout,
		},
		Review: ReviewConfig{
			Temperature:       review.DefaultTemperature,
			MaxTokens:         review.DefaultMaxTokens,
			ChatMaxTokens:     review.DefaultChatMaxTokens,
			ChatHistoryWindow: review.DefaultChatWindow,
			MaxConcurrent:     review.DefaultMaxConcurrent,
			Retry: RetryConfig{
				MaxAttempts: review.DefaultMaxAttempts,
				Delay:       review.DefaultRetryDelay,
			},
		},
		Database: DatabaseConfig{
			SQLitePath: "data/codecritic.db",
		},
		Auth: AuthConfig{
			TokenTTL: DefaultTokenTTL,
		},
		Email: EmailConfig{
			FromName:    "Code Critic",
			FrontendURL: DefaultFrontendURL,
		},
	}
}

// Load reads the config file at path.
// If the file doesn't exist, returns the default config.
// If the file exists but is invalid, returns a ConfigParseError.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse parses a config from YAML content on top of the defaults.
func Parse(content []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(content, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv layers environment variables over the config. getenv is usually
// os.Getenv. The model API key is taken from the variable matching the
// selected provider.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if v := getenv("MODEL_PROVIDER"); v != "" {
		c.Model.Provider = strings.ToLower(v)
	}
	if v := getenv("MODEL_NAME"); v != "" {
		c.Model.Name = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	switch c.Model.Provider {
	case llm.ProviderAnthropic:
		c.Model.APIKey = getenv("ANTHROPIC_API_KEY")
	default:
		c.Model.APIKey = getenv("OPENROUTER_API_KEY")
	}

	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := getenv("SECRET_KEY"); v != "" {
		c.Auth.SecretKey = v
	}
	if v := getenv("BREVO_API_KEY"); v != "" {
		c.Email.BrevoAPIKey = v
	}
	if v := getenv("FROM_EMAIL"); v != "" {
		c.Email.FromEmail = v
	}
	if v := getenv("FRONTEND_URL"); v != "" {
		c.Email.FrontendURL = strings.TrimRight(v, "/")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case llm.ProviderOpenRouter, llm.ProviderAnthropic:
	case "":
		c.Model.Provider = llm.ProviderOpenRouter
	default:
		return fmt.Errorf("invalid model provider: %s (must be '%s' or '%s')", c.Model.Provider, llm.ProviderOpenRouter, llm.ProviderAnthropic)
	}

	if c.Model.Timeout < MinTimeout || c.Model.Timeout > MaxTimeout {
		return fmt.Errorf("model timeout %s out of range [%s, %s]", c.Model.Timeout, MinTimeout, MaxTimeout)
	}

	r := c.Review
	if r.Temperature < 0 || r.Temperature > 1 {
		return fmt.Errorf("temperature %v out of range [0, 1]", r.Temperature)
	}
	if r.MaxTokens <= 0 || r.ChatMaxTokens <= 0 {
		return fmt.Errorf("max_tokens and chat_max_tokens must be positive")
	}
	if r.ChatHistoryWindow <= 0 {
		return fmt.Errorf("chat_history_window must be positive")
	}
	if r.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	if r.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	if r.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	return nil
}

// LLMConfig returns the adapter configuration.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider: c.Model.Provider,
		Model:    c.Model.Name,
		APIKey:   c.Model.APIKey,
		BaseURL:  c.Model.BaseURL,
		Timeout:  c.Model.Timeout,
	}
}

// ReviewOptions returns the review pipeline options.
func (c *Config) ReviewOptions() review.Options {
	return review.Options{
		Temperature:   c.Review.Temperature,
		MaxTokens:     c.Review.MaxTokens,
		ChatMaxTokens: c.Review.ChatMaxTokens,
		ChatWindow:    c.Review.ChatHistoryWindow,
		MaxConcurrent: int64(c.Review.MaxConcurrent),
		Retry: review.RetryPolicy{
			MaxAttempts: c.Review.Retry.MaxAttempts,
			Delay:       c.Review.Retry.Delay,
		},
		RedactSecrets: c.Privacy.RedactSecrets,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
