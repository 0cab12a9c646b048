package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"codewriter/internal/extract"
	"codewriter/internal/prompt"
)

// Generation is the outcome of one rotation pass. It always carries
// runnable code; Stub marks the fallback case.
type Generation struct {
	// Code is the extracted program text, or a stub.
	Code string

	// Provider is the backend that produced Code. Empty when no provider
	// produced anything and the final stub was synthesized locally.
	Provider Provider

	// Stub reports whether Code is a fallback stub.
	Stub bool

	// Attempts counts providers that were actually called.
	Attempts int
}

// Router walks the rotation order until a provider returns real code.
type Router struct {
	factory  Factory
	logger   *zap.Logger
	progress func(format string, args ...interface{})
}

// NewRouter creates a router over the given client factory.
func NewRouter(factory Factory, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{factory: factory, logger: logger}
}

// SetProgress installs a callback for human-facing progress lines. The
// router reports provider switches and failures through it; nil disables
// reporting.
func (r *Router) SetProgress(fn func(format string, args ...interface{})) {
	r.progress = fn
}

func (r *Router) report(format string, args ...interface{}) {
	if r.progress != nil {
		r.progress(format, args...)
	}
}

// GenerateWithRotation tries providers in rotation order starting from
// preferred and returns the first real (non-stub) extraction. Provider
// errors and stub-only answers move rotation along; the last stub seen is
// kept so the caller always receives runnable code. This method never
// fails - total provider outage yields a synthesized stub.
func (r *Router) GenerateWithRotation(ctx context.Context, preferred Provider, promptText string) Generation {
	var last Generation

	for _, name := range Rotate(preferred) {
		client, err := r.factory(name)
		if err != nil {
			r.logger.Warn("provider unavailable", zap.String("provider", string(name)), zap.Error(err))
			r.report("provider %s unavailable: %v", name, err)
			continue
		}

		last.Attempts++
		r.report("using provider %s", name)

		text, err := client.Generate(ctx, promptText)
		if err != nil {
			r.logger.Warn("provider failed", zap.String("provider", string(name)), zap.Error(err))
			r.report("provider %s failed: %v", name, err)
			continue
		}

		code := extract.Code(text)
		if code == "" {
			code = prompt.Stub("No code block extracted.")
		}
		if !prompt.IsStub(code) {
			return Generation{Code: code, Provider: name, Attempts: last.Attempts}
		}

		last.Code = code
		last.Provider = name
		last.Stub = true
		r.report("provider %s returned stub; trying next provider", name)
	}

	if last.Code == "" {
		last.Code = prompt.Stub("All providers failed or returned stubs.")
		last.Provider = ""
		last.Stub = true
	}
	return last
}

// GenerateWith calls a single provider without rotation. Used by the fix
// loop, which refines with one provider and treats errors as "no
// improvement this round".
func (r *Router) GenerateWith(ctx context.Context, p Provider, promptText string) (string, error) {
	client, err := r.factory(p)
	if err != nil {
		return "", fmt.Errorf("provider %s unavailable: %w", p, err)
	}
	return client.Generate(ctx, promptText)
}
