package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedBackend struct {
	mu      sync.Mutex
	results []error
	text    string
	calls   int
	prompts []string
}

func (s *scriptedBackend) Name() string { return "scripted" }

func (s *scriptedBackend) Complete(_ context.Context, _, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return "", s.results[idx]
	}
	return s.text, nil
}

type recordedWaits struct {
	delays []time.Duration
}

func (r *recordedWaits) wait(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestClient(b Completer, waits *recordedWaits) *Client {
	c := NewClient(b, nil)
	c.InitialBackoff = 2 * time.Second
	c.MaxAttempts = 3
	c.Wait = waits.wait
	return c
}

func TestBackoffDoublesAndStops(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 4)
	var got []time.Duration
	for {
		d, ok := b.Next(0)
		if !ok {
			break
		}
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, got)
	assert.Equal(t, 4, b.Attempts())
}

func TestBackoffHonorsHint(t *testing.T) {
	b := NewBackoff(time.Second, 4)
	d, ok := b.Next(7 * time.Second)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, d)
	d, ok = b.Next(0)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)
}

func TestGenerateRetriesRateLimitThenSucceeds(t *testing.T) {
	backend := &scriptedBackend{
		results: []error{&RateLimitError{Provider: "scripted"}, &RateLimitError{Provider: "scripted"}},
		text:    `{"tasks":[]}`,
	}
	waits := &recordedWaits{}
	raw, err := newTestClient(backend, waits).Generate(context.Background(), PromptContext{Title: "Piano", Days: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"tasks":[]}`, raw)
	assert.Equal(t, 3, backend.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits.delays)
}

func TestGenerateUsesRetryAfterHint(t *testing.T) {
	backend := &scriptedBackend{
		results: []error{&RateLimitError{Provider: "scripted", RetryAfter: 9 * time.Second}},
		text:    "ok",
	}
	waits := &recordedWaits{}
	_, err := newTestClient(backend, waits).Generate(context.Background(), PromptContext{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{9 * time.Second}, waits.delays)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	rl := &RateLimitError{Provider: "scripted"}
	backend := &scriptedBackend{results: []error{rl, rl, rl, rl}}
	waits := &recordedWaits{}
	_, err := newTestClient(backend, waits).Generate(context.Background(), PromptContext{})
	var exhausted *RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted), "got %v", err)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, backend.calls)
	assert.Len(t, waits.delays, 2)
}

func TestGenerateFailsFastOnOtherErrors(t *testing.T) {
	backend := &scriptedBackend{results: []error{errors.New("connection refused")}}
	waits := &recordedWaits{}
	_, err := newTestClient(backend, waits).Generate(context.Background(), PromptContext{})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "scripted", pe.Provider)
	assert.Equal(t, 1, backend.calls)
	assert.Empty(t, waits.delays)
}

func TestGenerateKeepsBackendProviderError(t *testing.T) {
	backend := &scriptedBackend{results: []error{&ProviderError{Provider: "scripted", Status: 401, Err: errors.New("bad key")}}}
	_, err := newTestClient(backend, &recordedWaits{}).Generate(context.Background(), PromptContext{})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 401, pe.Status)
}

func TestGenerateDeadlineCountsAsExhaustion(t *testing.T) {
	backend := &scriptedBackend{results: []error{&RateLimitError{Provider: "scripted"}}}
	c := NewClient(backend, nil)
	c.InitialBackoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Generate(ctx, PromptContext{})
	var exhausted *RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Minute)
}

func TestGenerateDisabled(t *testing.T) {
	c := NewClient(Disabled{}, nil)
	assert.False(t, c.Enabled())
	_, err := c.Generate(context.Background(), PromptContext{})
	assert.ErrorIs(t, err, ErrDisabled)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestBuildPromptCarriesGoalFields(t *testing.T) {
	prompt := BuildPrompt(PromptContext{
		Title:        "Learn Go",
		Description:  "Concurrency",
		CurrentLevel: "beginner",
		FocusAreas:   []string{"channels", "context"},
		DailyMinutes: 45,
		Days:         14,
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-15",
	})
	for _, want := range []string{
		"Goal Title: Learn Go",
		"Current Level: beginner",
		"channels, context",
		"45 minutes",
		"14 days",
		"2024-01-01",
		"2024-01-15",
		`"successCriteria"`,
		`"dailyFocus"`,
	} {
		assert.True(t, strings.Contains(prompt, want), "prompt missing %q", want)
	}
}
