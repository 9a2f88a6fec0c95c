package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"vetter/internal/retry"
)

// ErrMissingAPIKey means OPENAI_API_KEY is not set for a client that needs it.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// SetupInstructions is printed when the API key is missing.
const SetupInstructions = `
You haven't set up your API key yet.

If you don't have an API key yet, visit:

https://platform.openai.com/signup

1. Make an account or sign in
2. Click "View API Keys" from the top right menu.
3. Click "Create new secret key"

Then export it as OPENAI_API_KEY (or add it to a .env file) and restart.
`

const (
	ClientEino = "eino"
	ClientSDK  = "sdk"
	ClientStub = "stub"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig    `json:"basic_config"`
	Provider    ProviderConfig `json:"provider"`
	Retry       RetryConfig    `json:"retry"`
	Chat        ChatConfig     `json:"chat"`
}

type BasicConfig struct {
	ServerAddress     string   `json:"server_address" env:"VETTER_ADDR"`
	Debug             bool     `json:"debug" env:"VETTER_DEBUG"`
	SessionTTLMinutes int      `json:"session_ttl_minutes" env:"VETTER_SESSION_TTL_MINUTES"`
	AllowedOrigins    []string `json:"allowed_origins" env:"VETTER_ALLOWED_ORIGINS" envSeparator:","`
	// SecureCookies forces the Secure cookie attribute behind a TLS proxy.
	SecureCookies bool `json:"secure_cookies" env:"VETTER_SECURE_COOKIES"`
}

type ProviderConfig struct {
	Client         string `json:"client" env:"VETTER_CLIENT"`
	BaseURL        string `json:"base_url" env:"OPENAI_BASE_URL"`
	Model          string `json:"model" env:"VETTER_MODEL"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"VETTER_TIMEOUT_SECONDS"`
	// APIKey is read from the environment only.
	APIKey string `json:"-" env:"OPENAI_API_KEY"`
}

type RetryConfig struct {
	MaxAttempts      int `json:"max_attempts" env:"VETTER_RETRY_ATTEMPTS"`
	BaseDelaySeconds int `json:"base_delay_seconds" env:"VETTER_RETRY_BASE_DELAY_SECONDS"`
	MaxDelaySeconds  int `json:"max_delay_seconds" env:"VETTER_RETRY_MAX_DELAY_SECONDS"`
}

type ChatConfig struct {
	Title        string `json:"title" env:"VETTER_TITLE"`
	SystemPrompt string `json:"system_prompt" env:"VETTER_SYSTEM_PROMPT"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:     ":8090",
			SessionTTLMinutes: 60,
		},
		Provider: ProviderConfig{
			Client:         ClientEino,
			Model:          "gpt-3.5-turbo",
			TimeoutSeconds: 60,
		},
		Retry: RetryConfig{
			MaxAttempts:      6,
			BaseDelaySeconds: 1,
			MaxDelaySeconds:  60,
		},
		Chat: ChatConfig{
			Title:        "Candidate Vetter",
			SystemPrompt: "You are a helpful assistant.",
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json),
// then applies .env and environment overrides. A missing default file is not
// an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := readFile(absPath, cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(absPath string, cfg *Config) error {
	file, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	def := Defaults()
	c.Provider.Client = strings.ToLower(strings.TrimSpace(c.Provider.Client))
	if c.Provider.Client == "" {
		c.Provider.Client = def.Provider.Client
	}
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	if c.Provider.Model == "" {
		c.Provider.Model = def.Provider.Model
	}
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = def.BasicConfig.ServerAddress
	}
	if c.BasicConfig.SessionTTLMinutes <= 0 {
		c.BasicConfig.SessionTTLMinutes = def.BasicConfig.SessionTTLMinutes
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.BaseDelaySeconds < 0 {
		c.Retry.BaseDelaySeconds = 0
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		c.Retry.MaxDelaySeconds = c.Retry.BaseDelaySeconds
	}
	if c.Chat.Title == "" {
		c.Chat.Title = def.Chat.Title
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = def.Chat.SystemPrompt
	}
	origins := c.BasicConfig.AllowedOrigins[:0]
	for _, o := range c.BasicConfig.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.BasicConfig.AllowedOrigins = origins
}

// Validate checks the settings required to start.
func (c *Config) Validate() error {
	switch c.Provider.Client {
	case ClientEino, ClientSDK:
		if c.Provider.APIKey == "" {
			return ErrMissingAPIKey
		}
	case ClientStub:
	default:
		return fmt.Errorf("unknown client %q (want %s, %s or %s)", c.Provider.Client, ClientEino, ClientSDK, ClientStub)
	}
	return nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.BasicConfig.SessionTTLMinutes) * time.Minute
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds) * time.Second
}

func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySeconds) * time.Second
}

// Policy is the retry policy for completion requests.
func (r RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = r.MaxAttempts
	p.BaseDelay = r.BaseDelay()
	p.MaxDelay = r.MaxDelay()
	return p
}
