package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrQuotaExceeded means the provider rejected the call because a rate
	// or usage limit was hit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrModelUnavailable means the model identifier is unknown or retired.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrRequestFailed covers transport failures and unexpected provider errors.
	ErrRequestFailed = errors.New("request failed")

	// ErrConfiguration is returned at construction time, before any call,
	// when a required setting such as an API key is missing.
	ErrConfiguration = errors.New("configuration error")

	// ErrMalformedRecord marks a long-term memory line that could not be
	// decoded. It is logged, never returned from the memory package.
	ErrMalformedRecord = errors.New("malformed memory record")
)

// ProviderError is a normalized backend failure.
type ProviderError struct {
	Kind     error  // one of ErrQuotaExceeded, ErrModelUnavailable, ErrRequestFailed
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s/%s: %v", e.Provider, e.Model, e.Kind)
	}
	return fmt.Sprintf("%s/%s: %v: %v", e.Provider, e.Model, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewProviderError wraps err with the given kind.
func NewProviderError(kind error, provider, model string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Model: model, Err: err}
}

// UnknownModelError is returned when no backend is registered for a
// (provider, model) pair.
type UnknownModelError struct {
	Provider string
	Model    string
	Known    []string
}

func (e *UnknownModelError) Error() string {
	msg := fmt.Sprintf("unknown model %q for provider %q", e.Model, e.Provider)
	if len(e.Known) > 0 {
		known := append([]string(nil), e.Known...)
		sort.Strings(known)
		msg += " (available: " + strings.Join(known, ", ") + ")"
	}
	return msg
}

func (e *UnknownModelError) Unwrap() error { return ErrModelUnavailable }

// MissingCredentialError reports that no API key is configured for a provider.
func MissingCredentialError(provider string) error {
	return fmt.Errorf("%w: no API key set for provider %q", ErrConfiguration, provider)
}

// ClassifyMessage maps a free-form provider error message to one of the
// error kinds. Used by adapters whose SDK does not expose typed errors.
func ClassifyMessage(msg string) error {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many"),
		strings.Contains(lower, "quota"), strings.Contains(lower, "429"),
		strings.Contains(lower, "resource_exhausted"), strings.Contains(lower, "resource exhausted"):
		return ErrQuotaExceeded
	case strings.Contains(lower, "model not found"), strings.Contains(lower, "404"),
		strings.Contains(lower, "not_found"), strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "deprecated"), strings.Contains(lower, "unknown model"):
		return ErrModelUnavailable
	default:
		return ErrRequestFailed
	}
}
