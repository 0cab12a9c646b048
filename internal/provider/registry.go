package provider

import (
	"fmt"

	"go.uber.org/zap"
)

// Settings holds the per-provider configs resolved by the caller. The CLI
// fills in API keys, model overrides, temperature, and token limits before
// any client is constructed.
type Settings struct {
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

// Factory builds a client for a provider. Construction itself never does
// network I/O; a client without credentials fails at Generate time with a
// credential error.
type Factory func(p Provider) (Client, error)

// NewFactory returns a Factory backed by the given settings.
func NewFactory(settings Settings, logger *zap.Logger) Factory {
	return func(p Provider) (Client, error) {
		switch p {
		case ProviderGemini:
			return NewGeminiClientWithConfig(settings.Gemini, logger), nil
		case ProviderOpenAI:
			return NewOpenAIClientWithConfig(settings.OpenAI, logger), nil
		case ProviderAnthropic:
			return NewAnthropicClientWithConfig(settings.Anthropic, logger), nil
		default:
			return nil, fmt.Errorf("unknown provider %q", p)
		}
	}
}
