package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"planline/internal/config"
)

// Disabled is the no-op backend used when no credential is configured.
type Disabled struct{}

func (Disabled) Name() string { return "disabled" }

func (Disabled) Complete(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

// FromConfig builds the retrying client for the configured backend. A missing
// API key or kind "none" yields a client over Disabled.
func FromConfig(ctx context.Context, cfg config.ProviderConfig, apiKey string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var backend Completer
	switch {
	case cfg.Kind == config.ProviderNone || cfg.Kind == "":
		backend = Disabled{}
	case apiKey == "":
		logger.Warn("no provider credential configured; using built-in plan generator", zap.String("kind", cfg.Kind))
		backend = Disabled{}
	case cfg.Kind == config.ProviderOpenAI:
		backend = NewOpenAI(apiKey, cfg.BaseURL, cfg.Model, cfg.Temperature)
	case cfg.Kind == config.ProviderGemini:
		g, err := NewGemini(ctx, apiKey, cfg.BaseURL, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		backend = g
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
	c := NewClient(backend, logger)
	c.InitialBackoff = cfg.InitialBackoff
	if cfg.MaxAttempts > 0 {
		c.MaxAttempts = cfg.MaxAttempts
	}
	return c, nil
}
