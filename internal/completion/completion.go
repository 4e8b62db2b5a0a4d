// Package completion talks to hosted text-completion services.
//
// Every failure of a remote call is reported as *UpstreamError so callers can
// surface it and retry without caring which provider served the request.
package completion

import (
	"context"
	"errors"
	"fmt"

	"nambo/internal/prompt"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var (
	ErrEmptyOutput     = errors.New("output text is missing")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Options are per-call sampling settings.
type Options struct {
	Temperature     float64
	MaxOutputTokens int64
}

// Client produces a reply for a rendered prompt.
type Client interface {
	Complete(ctx context.Context, req prompt.Request, opts Options) (string, error)
}

// UpstreamError wraps a failed completion call.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(provider string, err error) error {
	return &UpstreamError{Provider: provider, Err: err}
}

// IsUpstream reports whether err came from a remote completion call.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// New builds a client for the named provider.
func New(provider, apiKey, model string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model), nil
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return defaultAnthropicModel
	default:
		return defaultOpenAIModel
	}
}
