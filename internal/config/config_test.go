package config

import (
	"os"
	"path/filepath"
	"testing"

	"codewriter/internal/provider"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != "gemini" || cfg.Out != "generated.py" || cfg.MaxTokens != 6000 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_LayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "provider: openai\ntemperature: 0.7\nmodels:\n  openai: gpt-4o-mini\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	// Untouched fields keep their defaults.
	if cfg.Out != "generated.py" || cfg.Python != "python3" {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Models["openai"] != "gpt-4o-mini" {
		t.Errorf("Models = %v", cfg.Models)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed YAML")
	}
}

func TestResolveModel_Precedence(t *testing.T) {
	cfg := Default()
	cfg.Models["openai"] = "from-config"

	// Override wins over everything.
	t.Setenv("OPENAI_MODEL", "from-env")
	if got := cfg.ResolveModel(provider.ProviderOpenAI, "from-flag"); got != "from-flag" {
		t.Errorf("override: got %q", got)
	}

	// Env beats config.
	if got := cfg.ResolveModel(provider.ProviderOpenAI, ""); got != "from-env" {
		t.Errorf("env: got %q", got)
	}

	// Config beats default.
	t.Setenv("OPENAI_MODEL", "")
	if got := cfg.ResolveModel(provider.ProviderOpenAI, ""); got != "from-config" {
		t.Errorf("config: got %q", got)
	}

	// Built-in default as last resort.
	delete(cfg.Models, "openai")
	if got := cfg.ResolveModel(provider.ProviderOpenAI, ""); got != "gpt-4o" {
		t.Errorf("default: got %q", got)
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-alt")
	t.Setenv("OPENAI_API_KEY", "oai")
	t.Setenv("ANTHROPIC_API_KEY", "")

	if got := ResolveAPIKey(provider.ProviderGemini); got != "gem-alt" {
		t.Errorf("gemini key = %q, want GEMINI_API_KEY fallback", got)
	}
	t.Setenv("GOOGLE_API_KEY", "gem-main")
	if got := ResolveAPIKey(provider.ProviderGemini); got != "gem-main" {
		t.Errorf("gemini key = %q, want GOOGLE_API_KEY to win", got)
	}
	if got := ResolveAPIKey(provider.ProviderOpenAI); got != "oai" {
		t.Errorf("openai key = %q", got)
	}
	if got := ResolveAPIKey(provider.ProviderAnthropic); got != "" {
		t.Errorf("anthropic key = %q, want empty", got)
	}
}

func TestProviderSettings(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g")
	t.Setenv("OPENAI_API_KEY", "o")
	t.Setenv("ANTHROPIC_API_KEY", "a")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("ANTHROPIC_MODEL", "")

	cfg := Default()
	settings := cfg.ProviderSettings("", 0.5, 2048)

	if settings.Gemini.APIKey != "g" || settings.Gemini.MaxOutputTokens != 2048 {
		t.Errorf("gemini settings = %+v", settings.Gemini)
	}
	if settings.OpenAI.Temperature != 0.5 || settings.OpenAI.MaxTokens != 2048 {
		t.Errorf("openai settings = %+v", settings.OpenAI)
	}
	if settings.Anthropic.Model != "claude-3-5-sonnet-20240620" {
		t.Errorf("anthropic model = %q", settings.Anthropic.Model)
	}

	// A model override applies across providers.
	settings = cfg.ProviderSettings("custom-model", 0.5, 2048)
	if settings.Gemini.Model != "custom-model" || settings.OpenAI.Model != "custom-model" {
		t.Error("model override not applied")
	}
}
