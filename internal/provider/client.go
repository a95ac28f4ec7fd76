// Package provider talks to generative text providers and owns the
// retry/backoff policy around them.
package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Completer is one raw request/response exchange with a provider backend.
// Backends report throttling as *RateLimitError; any other error is final.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Client wraps a Completer with the rate-limit retry policy.
type Client struct {
	Backend        Completer
	InitialBackoff time.Duration
	MaxAttempts    int
	Logger         *zap.Logger
	// Wait blocks for d or until ctx is done; tests replace it to skip real sleeps.
	Wait func(ctx context.Context, d time.Duration) error
}

// NewClient returns a Client with the default retry policy.
func NewClient(backend Completer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		Backend:        backend,
		InitialBackoff: DefaultInitialBackoff,
		MaxAttempts:    DefaultMaxAttempts,
		Logger:         logger,
	}
}

// Enabled reports whether a real backend is configured.
func (c *Client) Enabled() bool {
	if c == nil || c.Backend == nil {
		return false
	}
	_, disabled := c.Backend.(Disabled)
	return !disabled
}

// Generate builds the plan prompt and returns the provider's raw text.
func (c *Client) Generate(ctx context.Context, pc PromptContext) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	logger := c.logger().With(zap.String("provider", c.Backend.Name()))
	prompt := BuildPrompt(pc)
	backoff := NewBackoff(c.InitialBackoff, c.MaxAttempts)
	for {
		if err := ctx.Err(); err != nil {
			return "", &RetriesExhaustedError{Attempts: backoff.Attempts(), Last: err}
		}
		raw, err := c.Backend.Complete(ctx, SystemPrompt, prompt)
		if err == nil {
			return raw, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &RetriesExhaustedError{Attempts: backoff.Attempts() + 1, Last: ctxErr}
		}
		var rl *RateLimitError
		if !errors.As(err, &rl) {
			var pe *ProviderError
			if errors.As(err, &pe) {
				return "", pe
			}
			return "", &ProviderError{Provider: c.Backend.Name(), Err: err}
		}
		delay, ok := backoff.Next(rl.RetryAfter)
		if !ok {
			logger.Warn("provider retries exhausted", zap.Int("attempts", backoff.Attempts()), zap.Error(err))
			return "", &RetriesExhaustedError{Attempts: backoff.Attempts(), Last: err}
		}
		logger.Info("provider rate limited, backing off",
			zap.Int("attempt", backoff.Attempts()),
			zap.Duration("delay", delay),
			zap.Duration("retry_after", rl.RetryAfter))
		if err := c.wait(ctx, delay); err != nil {
			return "", &RetriesExhaustedError{Attempts: backoff.Attempts(), Last: err}
		}
	}
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.Wait != nil {
		return c.Wait(ctx, d)
	}
	return sleep(ctx, d)
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
