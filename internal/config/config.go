// Package config loads CLI defaults from an optional YAML file and
// resolves provider credentials and model names. All environment lookups
// live here, at the command boundary; clients deeper in the stack receive
// explicit values only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"codewriter/internal/provider"
)

// Config holds user-tunable defaults for the generate command.
type Config struct {
	Provider    string            `yaml:"provider"`
	Template    string            `yaml:"template"`
	Domain      string            `yaml:"domain"`
	Out         string            `yaml:"out"`
	Temperature float32           `yaml:"temperature"`
	MaxTokens   int               `yaml:"max_tokens"`
	Fix         int               `yaml:"fix"`
	Python      string            `yaml:"python"`
	HistoryDB   string            `yaml:"history_db"`
	Models      map[string]string `yaml:"models"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Provider:    "gemini",
		Template:    "basic",
		Out:         "generated.py",
		Temperature: 0.2,
		MaxTokens:   6000,
		Python:      "python3",
		HistoryDB:   DefaultHistoryPath(),
		Models:      map[string]string{},
	}
}

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(".codewriter", "config.yaml")
}

// DefaultHistoryPath is the default history database location.
func DefaultHistoryPath() string {
	return filepath.Join(".codewriter", "history.db")
}

// Load reads the YAML config at path, layering it over the defaults. A
// missing file is not an error - the defaults come back unchanged. An
// empty path means DefaultConfigPath.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Models == nil {
		cfg.Models = map[string]string{}
	}
	return cfg, nil
}

// defaultModels maps each provider to its fallback model.
var defaultModels = map[provider.Provider]string{
	provider.ProviderGemini:    "gemini-2.5-pro",
	provider.ProviderOpenAI:    "gpt-4o",
	provider.ProviderAnthropic: "claude-3-5-sonnet-20240620",
}

// ResolveModel picks the model for a provider. Precedence: explicit
// override > {PROVIDER}_MODEL environment variable > config file >
// built-in default.
func (c *Config) ResolveModel(p provider.Provider, override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(strings.ToUpper(string(p)) + "_MODEL"); env != "" {
		return env
	}
	if m, ok := c.Models[string(p)]; ok && m != "" {
		return m
	}
	return defaultModels[p]
}

// ResolveAPIKey reads the provider's API key from the environment. Gemini
// accepts either GOOGLE_API_KEY or GEMINI_API_KEY. An empty return means
// the provider is unavailable this run.
func ResolveAPIKey(p provider.Provider) string {
	switch p {
	case provider.ProviderGemini:
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GEMINI_API_KEY")
	case provider.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case provider.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

// ProviderSettings assembles the per-provider client configs for one run.
func (c *Config) ProviderSettings(modelOverride string, temperature float32, maxTokens int) provider.Settings {
	gemini := provider.DefaultGeminiConfig(ResolveAPIKey(provider.ProviderGemini))
	gemini.Model = c.ResolveModel(provider.ProviderGemini, modelOverride)
	gemini.MaxOutputTokens = maxTokens

	openAI := provider.DefaultOpenAIConfig(ResolveAPIKey(provider.ProviderOpenAI))
	openAI.Model = c.ResolveModel(provider.ProviderOpenAI, modelOverride)
	openAI.Temperature = temperature
	openAI.MaxTokens = maxTokens

	anthropic := provider.DefaultAnthropicConfig(ResolveAPIKey(provider.ProviderAnthropic))
	anthropic.Model = c.ResolveModel(provider.ProviderAnthropic, modelOverride)
	anthropic.Temperature = temperature
	anthropic.MaxTokens = maxTokens

	return provider.Settings{Gemini: gemini, OpenAI: openAI, Anthropic: anthropic}
}
