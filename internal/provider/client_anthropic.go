package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AnthropicClient implements Client for the Anthropic messages API.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	httpClient  *http.Client
	logger      *zap.Logger
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.anthropic.com/v1",
		Model:       "claude-3-5-sonnet-20240620",
		Timeout:     2 * time.Minute,
		MaxTokens:   6000,
		Temperature: 0.2,
	}
}

// NewAnthropicClient creates an Anthropic client with default config.
func NewAnthropicClient(apiKey string, logger *zap.Logger) *AnthropicClient {
	return NewAnthropicClientWithConfig(DefaultAnthropicConfig(apiKey), logger)
}

// NewAnthropicClientWithConfig creates an Anthropic client with custom config.
func NewAnthropicClientWithConfig(config AnthropicConfig, logger *zap.Logger) *AnthropicClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultAnthropicConfig(config.APIKey)
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if strings.TrimSpace(config.Model) == "" {
		config.Model = defaults.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	return &AnthropicClient{
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient:  &http.Client{Timeout: config.Timeout},
		logger:      logger,
	}
}

// Name implements Client.
func (c *AnthropicClient) Name() Provider { return ProviderAnthropic }

// Generate sends the prompt and returns the concatenated text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", newError(ProviderAnthropic, KindCredential, "API key not configured", nil)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	c.logger.Debug("anthropic request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	reqBody := AnthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []AnthropicMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", newError(ProviderAnthropic, KindBadResponse, "failed to marshal request", err)
	}

	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(jsonData))
		if err != nil {
			return "", newError(ProviderAnthropic, KindTransport, "failed to create request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = newError(ProviderAnthropic, KindTransport, "request failed", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = newError(ProviderAnthropic, KindTransport, "failed to read response", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = newError(ProviderAnthropic, KindQuota, "rate limit exceeded (429)", nil)
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", newError(ProviderAnthropic, KindCredential,
				fmt.Sprintf("API key rejected with status %d", resp.StatusCode), nil)
		}
		if resp.StatusCode != http.StatusOK {
			return "", newError(ProviderAnthropic, KindTransport,
				fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, string(body)), nil)
		}

		var anthropicResp AnthropicResponse
		if err := json.Unmarshal(body, &anthropicResp); err != nil {
			return "", newError(ProviderAnthropic, KindBadResponse, "failed to parse response", err)
		}
		if anthropicResp.Error != nil {
			return "", newError(ProviderAnthropic, KindBadResponse,
				"API error: "+anthropicResp.Error.Message, nil)
		}
		if len(anthropicResp.Content) == 0 {
			return "", newError(ProviderAnthropic, KindBadResponse, "no completion returned", nil)
		}

		var result strings.Builder
		for _, content := range anthropicResp.Content {
			if content.Type == "text" {
				result.WriteString(content.Text)
			}
		}
		response := strings.TrimSpace(result.String())

		c.logger.Debug("anthropic response",
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Int("response_len", len(response)))
		return response, nil
	}

	return "", newError(ProviderAnthropic, KindTransport, "max retries exceeded", lastErr)
}
