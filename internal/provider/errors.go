package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrDisabled is returned by the no-op provider used when no credential is configured.
var ErrDisabled = errors.New("provider disabled: no credential configured")

// RateLimitError is the signal a backend raises when the provider throttles it.
// RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s: rate limited", e.Provider)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// ProviderError is a non-retryable provider failure.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: request failed with status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RetriesExhaustedError reports that every allowed attempt was rate limited,
// or that the caller's deadline expired first.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("provider retries exhausted after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }
