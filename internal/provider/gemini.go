package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini generates plans through the Google GenAI SDK.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini backend. baseURL overrides the API endpoint.
func NewGemini(ctx context.Context, apiKey, baseURL, model string, temperature float64) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model, temperature: float32(temperature)}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(g.temperature),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", classifyGenAIError(g.Name(), err)
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", &ProviderError{Provider: g.Name(), Err: fmt.Errorf("no content returned")}
	}
	return text, nil
}

func classifyGenAIError(name string, err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) {
			return &ProviderError{Provider: name, Err: err}
		}
		apiErr = *apiErrPtr
	}
	if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
		return &RateLimitError{Provider: name, RetryAfter: retryDelay(apiErr.Details), Message: apiErr.Message}
	}
	return &ProviderError{Provider: name, Status: apiErr.Code, Err: err}
}

// retryDelay extracts google.rpc.RetryInfo.retryDelay ("30s") from error details.
func retryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if delay, err := time.ParseDuration(raw); err == nil && delay > 0 {
			return min(delay, MaxRetryAfter)
		}
	}
	return 0
}
