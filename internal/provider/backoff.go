package provider

import "time"

const (
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxAttempts    = 3
)

// Backoff tracks the retry state of one generation run: how many attempts
// have been spent and how long to wait before the next one.
type Backoff struct {
	Initial     time.Duration
	MaxAttempts int

	attempts int
	next     time.Duration
}

func NewBackoff(initial time.Duration, maxAttempts int) *Backoff {
	if initial < 0 {
		initial = DefaultInitialBackoff
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Backoff{Initial: initial, MaxAttempts: maxAttempts, next: initial}
}

// Attempts reports how many attempts have been recorded.
func (b *Backoff) Attempts() int { return b.attempts }

// Next records a rate-limited attempt and returns the delay before the next
// one. ok is false once MaxAttempts attempts have been spent. A positive hint
// replaces the computed delay for this step; the doubling schedule carries on
// from where it was.
func (b *Backoff) Next(hint time.Duration) (delay time.Duration, ok bool) {
	b.attempts++
	if b.attempts >= b.MaxAttempts {
		return 0, false
	}
	delay = b.next
	b.next *= 2
	if hint > 0 {
		delay = hint
	}
	return delay, true
}
