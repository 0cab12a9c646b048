// Package provider holds the LLM clients (Gemini, OpenAI, Anthropic) and
// the rotation router that tries them in order until one returns usable
// code. Clients are constructed from explicit Config structs; credential
// lookup happens at the CLI boundary, never inside this package.
package provider

import (
	"context"
	"fmt"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// CanonicalOrder is the fixed rotation baseline.
func CanonicalOrder() []Provider {
	return []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic}
}

// Parse validates a provider name from user input.
func Parse(name string) (Provider, error) {
	p := Provider(name)
	for _, known := range CanonicalOrder() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (valid: gemini, openai, anthropic)", name)
}

// Rotate returns the canonical order with preferred moved to the front.
// Every provider appears exactly once; an unknown preferred value yields
// the canonical order unchanged.
func Rotate(preferred Provider) []Provider {
	canonical := CanonicalOrder()
	order := make([]Provider, 0, len(canonical))
	for _, p := range canonical {
		if p == preferred {
			order = append([]Provider{p}, order...)
		} else {
			order = append(order, p)
		}
	}
	return order
}

// Client is a single LLM backend. Generate sends one prompt and returns
// the raw completion text.
type Client interface {
	Name() Provider
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	// KindCredential covers a missing or rejected API key.
	KindCredential ErrorKind = "credential"

	// KindQuota covers rate limits and exhausted quotas.
	KindQuota ErrorKind = "quota"

	// KindTransport covers network failures and non-2xx responses.
	KindTransport ErrorKind = "transport"

	// KindBadResponse covers unparseable or empty completions.
	KindBadResponse ErrorKind = "bad_response"
)

// Error is a classified provider failure.
type Error struct {
	Provider Provider
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(p Provider, kind ErrorKind, msg string, err error) *Error {
	return &Error{Provider: p, Kind: kind, Message: msg, Err: err}
}
