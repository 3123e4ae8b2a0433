package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Client abstracts a text-completion provider.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature *float32
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// ErrMissingAPIKey is returned when a provider key is absent at call time.
var ErrMissingAPIKey = errors.New("api key not configured")

// ErrDisabled is returned when a provider is switched off by configuration.
var ErrDisabled = errors.New("provider disabled")

// ProviderError wraps any failure of an upstream AI provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Provider + ": provider error"
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err unless it already is a ProviderError.
func NewProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Err: err}
}

// KeyFunc resolves a provider key each time a call is made.
type KeyFunc func() string

// EnvKey reads the named environment variable at call time.
func EnvKey(name string) KeyFunc {
	return func() string {
		return strings.TrimSpace(os.Getenv(name))
	}
}

// StaticKey always returns key.
func StaticKey(key string) KeyFunc {
	return func() string { return key }
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 { return &v }
