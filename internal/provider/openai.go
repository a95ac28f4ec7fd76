package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// MaxRetryAfter caps the delay a provider can ask for between attempts.
const MaxRetryAfter = 10 * time.Minute

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
	// Now is used to resolve HTTP-date Retry-After values.
	Now func() time.Time
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAI(apiKey, baseURL, model string, temperature float64) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		APIKey:      apiKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Model:       model,
		Temperature: temperature,
		HTTPClient:  &http.Client{Timeout: 120 * time.Second},
		Now:         time.Now,
	}
}

func (c *OpenAI) Name() string { return "openai" }

func (c *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := openAIRequest{
		Model: c.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{
			Provider:   c.Name(),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
			Message:    strings.TrimSpace(string(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &ProviderError{Provider: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Error != nil {
		return "", &ProviderError{Provider: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("%s", out.Error.Message)}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", &ProviderError{Provider: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("no completion returned")}
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAI) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// parseRetryAfter reads a Retry-After header given as delay-seconds or an HTTP
// date, clamped to MaxRetryAfter.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		if secs >= MaxRetryAfter.Seconds() {
			return MaxRetryAfter
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return min(d, MaxRetryAfter)
		}
	}
	return 0
}
