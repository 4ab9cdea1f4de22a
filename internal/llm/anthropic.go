package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const anthropicBaseURL = "https://api.anthropic.com/v1"

// Ensure AnthropicClient implements Generator.
var _ Generator = (*AnthropicClient)(nil)

func init() {
	Register(ProviderAnthropic, func(apiKey, model string) Generator {
		return NewAnthropic(apiKey, model)
	})
}

// AnthropicClient implements Generator using the Anthropic messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	baseURL    string
	client     *http.Client
	maxRetries int
}

// AnthropicOption configures the Anthropic client.
type AnthropicOption func(*AnthropicClient)

// WithAnthropicBaseURL sets a custom base URL (for testing).
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(c *AnthropicClient) {
		c.baseURL = url
	}
}

// WithAnthropicRetries sets the number of attempts for transient failures.
func WithAnthropicRetries(n int) AnthropicOption {
	return func(c *AnthropicClient) {
		c.maxRetries = n
	}
}

// NewAnthropic creates a new Anthropic-backed generator.
func NewAnthropic(apiKey, model string, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    anthropicBaseURL,
		client:     &http.Client{Timeout: 60 * time.Second},
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate sends the prompts to the messages API and returns the text content.
func (c *AnthropicClient) Generate(ctx context.Context, system, user string) (string, error) {
	reqBody := map[string]interface{}{
		"model":      c.model,
		"max_tokens": 4096,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(reqJSON))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("making request: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			// Transient server error - retry
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			// Client error (4xx) - don't retry
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
		}

		var apiResp anthropicResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			resp.Body.Close()
			return "", fmt.Errorf("decoding response: %w", err)
		}
		resp.Body.Close()

		if len(apiResp.Content) == 0 {
			return "", fmt.Errorf("empty response from API")
		}
		return apiResp.Content[0].Text, nil
	}

	return "", lastErr
}
