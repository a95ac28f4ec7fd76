package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config models planline.yml.
type Config struct {
	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Goals    struct {
		MinDailyMinutes int `yaml:"min_daily_minutes" json:"min_daily_minutes"`
		MaxDailyMinutes int `yaml:"max_daily_minutes" json:"max_daily_minutes"`
		// MaxDays caps the number of scheduled days in one goal.
		MaxDays int `yaml:"max_days" json:"max_days"`
	} `yaml:"goals" json:"goals"`
	Sweep struct {
		Concurrency int `yaml:"concurrency" json:"concurrency"`
	} `yaml:"sweep" json:"sweep"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

// WebhookConfig subscribes an HTTP endpoint to the event log. An empty Events
// list receives every event type.
type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Secret         string   `yaml:"secret" json:"-"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
}

type ProviderConfig struct {
	Kind           string        `yaml:"kind" json:"kind"`
	Model          string        `yaml:"model" json:"model"`
	BaseURL        string        `yaml:"base_url" json:"base_url,omitempty"`
	Temperature    float64       `yaml:"temperature" json:"temperature"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with pl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOrDefault returns the workspace config, or Default when no file exists.
func LoadOrDefault(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderNone, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config.provider.kind must be one of none, openai, gemini (got %q)", c.Provider.Kind)
	}
	if c.Provider.Kind != ProviderNone && c.Provider.Model == "" {
		return fmt.Errorf("config.provider.model is required for provider %s", c.Provider.Kind)
	}
	if c.Provider.MaxAttempts < 1 {
		return fmt.Errorf("config.provider.max_attempts must be at least 1")
	}
	if c.Provider.InitialBackoff < 0 {
		return fmt.Errorf("config.provider.initial_backoff must not be negative")
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("config.provider.timeout must not be negative")
	}
	if c.Goals.MinDailyMinutes < 1 {
		return fmt.Errorf("config.goals.min_daily_minutes must be at least 1")
	}
	if c.Goals.MaxDailyMinutes < c.Goals.MinDailyMinutes {
		return fmt.Errorf("config.goals.max_daily_minutes must be >= min_daily_minutes")
	}
	if c.Goals.MaxDays < 1 {
		return fmt.Errorf("config.goals.max_days must be at least 1")
	}
	if c.Sweep.Concurrency < 1 {
		return fmt.Errorf("config.sweep.concurrency must be at least 1")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "planline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `provider:
  # none falls back to the built-in practice plan generator
  kind: openai
  model: gpt-3.5-turbo
  base_url: https://api.openai.com/v1
  temperature: 0.7
  initial_backoff: 2s
  max_attempts: 3
  timeout: 60s

goals:
  min_daily_minutes: 1
  max_daily_minutes: 240
  max_days: 3660

sweep:
  concurrency: 4

# webhooks:
#   - url: https://example.com/hooks/planline
#     events: [tasks.synthesized, task.status]
#     secret: change-me
#     timeout_seconds: 5
`
