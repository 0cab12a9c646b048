package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient implements Client for the OpenAI chat completions API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	configured  bool
	logger      *zap.Logger
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      apiKey,
		Model:       openai.GPT4o,
		Timeout:     2 * time.Minute,
		MaxTokens:   6000,
		Temperature: 0.2,
	}
}

// NewOpenAIClient creates an OpenAI client with default config.
func NewOpenAIClient(apiKey string, logger *zap.Logger) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey), logger)
}

// NewOpenAIClientWithConfig creates an OpenAI client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOpenAIConfig(config.APIKey)
	if strings.TrimSpace(config.Model) == "" {
		config.Model = defaults.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		configured:  config.APIKey != "",
		logger:      logger,
	}
}

// Name implements Client.
func (c *OpenAIClient) Name() Provider { return ProviderOpenAI }

// Generate sends the prompt as a single user message and returns the
// first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.configured {
		return "", newError(ProviderOpenAI, KindCredential, "API key not configured", nil)
	}

	startTime := time.Now()
	c.logger.Debug("openai request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", newError(ProviderOpenAI, KindBadResponse, "no completion returned", nil)
	}
	response := strings.TrimSpace(resp.Choices[0].Message.Content)

	c.logger.Debug("openai response",
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Int("response_len", len(response)))
	return response, nil
}

func classifyOpenAIError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return newError(ProviderOpenAI, KindCredential,
				fmt.Sprintf("API key rejected with status %d", apiErr.HTTPStatusCode), err)
		case http.StatusTooManyRequests:
			return newError(ProviderOpenAI, KindQuota, "rate limit exceeded (429)", err)
		}
		return newError(ProviderOpenAI, KindTransport,
			fmt.Sprintf("API request failed with status %d", apiErr.HTTPStatusCode), err)
	}
	return newError(ProviderOpenAI, KindTransport, "request failed", err)
}
