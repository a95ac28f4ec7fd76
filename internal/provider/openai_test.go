package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestOpenAICompleteSendsChatRequest(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"tasks\":[]}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("sk-test", srv.URL+"/", "gpt-test", 0.3)
	out, err := c.Complete(context.Background(), "sys", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"tasks":[]}`, out)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user prompt", got.Messages[1].Content)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
}

func TestOpenAIRateLimitCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL, "m", 0).Complete(context.Background(), "s", "p")
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
}

func TestOpenAIServerErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL, "m", 0).Complete(context.Background(), "s", "p")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusInternalServerError, pe.Status)
}

func TestOpenAIEmptyChoicesIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL, "m", 0).Complete(context.Background(), "s", "p")
	var pe *ProviderError
	assert.True(t, errors.As(err, &pe))
}

func TestClientRetriesOpenAIRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"tasks\":[{\"title\":\"A\"}]}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(NewOpenAI("k", srv.URL, "m", 0), nil)
	c.InitialBackoff = time.Millisecond
	raw, err := c.Generate(context.Background(), PromptContext{Title: "x"})
	require.NoError(t, err)
	assert.Contains(t, raw, `"A"`)
	assert.Equal(t, 2, calls)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 1500*time.Millisecond, parseRetryAfter("1.5", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-4", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
	assert.Equal(t, MaxRetryAfter, parseRetryAfter("1e30", now))
	assert.Equal(t, MaxRetryAfter, parseRetryAfter(now.Add(72*time.Hour).Format(http.TimeFormat), now))
}

func TestClassifyGenAIError(t *testing.T) {
	rateLimited := genai.APIError{
		Code:   http.StatusTooManyRequests,
		Status: "RESOURCE_EXHAUSTED",
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "12s"},
		},
	}
	var rl *RateLimitError
	require.True(t, errors.As(classifyGenAIError("gemini", rateLimited), &rl))
	assert.Equal(t, 12*time.Second, rl.RetryAfter)

	var pe *ProviderError
	require.True(t, errors.As(classifyGenAIError("gemini", genai.APIError{Code: 403}), &pe))
	assert.Equal(t, 403, pe.Status)

	require.True(t, errors.As(classifyGenAIError("gemini", errors.New("dial tcp")), &pe))
	assert.Equal(t, 0, pe.Status)
}
