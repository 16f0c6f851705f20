package config

import (
	"os"
	"strings"
	"sync"

	"github.com/becomeliminal/chat-go-sdk/provider/anthropic"
	"github.com/becomeliminal/chat-go-sdk/provider/langchain"
	"github.com/becomeliminal/chat-go-sdk/session"
)

// envVars lists the environment variables consulted per provider, in order.
var envVars = map[string][]string{
	anthropic.Provider: {"ANTHROPIC_API_KEY"},
	langchain.OpenAI:   {"OPENAI_API_KEY"},
	langchain.Gemini:   {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	langchain.Mistral:  {"MISTRAL_API_KEY"},
}

// EnvVar returns the primary environment variable for a provider's key.
func EnvVar(provider string) string {
	if names, ok := envVars[provider]; ok {
		return names[0]
	}
	return strings.ToUpper(provider) + "_API_KEY"
}

// Credentials maps providers to API keys. Explicit keys win over the
// environment. Keys may use env:VAR indirection. Safe for concurrent use.
type Credentials struct {
	mu        sync.RWMutex
	keys      map[string]string
	lookupEnv bool
}

// Ensure Credentials implements session.Credentials.
var _ session.Credentials = (*Credentials)(nil)

// NewCredentials creates a credential store seeded with keys that also falls
// back to provider environment variables.
func NewCredentials(keys map[string]string) *Credentials {
	c := &Credentials{keys: make(map[string]string, len(keys)), lookupEnv: true}
	for provider, key := range keys {
		c.keys[provider] = key
	}
	return c
}

// StaticOnly disables the environment fallback.
func (c *Credentials) StaticOnly() *Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookupEnv = false
	return c
}

// Set stores the key for a provider.
func (c *Credentials) Set(provider, key string) *Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[provider] = key
	return c
}

// APIKey implements session.Credentials.
func (c *Credentials) APIKey(provider string) (string, bool) {
	c.mu.RLock()
	key := ResolveSecret(c.keys[provider])
	lookupEnv := c.lookupEnv
	c.mu.RUnlock()
	if key != "" {
		return key, true
	}
	if !lookupEnv {
		return "", false
	}

	names, ok := envVars[provider]
	if !ok {
		names = []string{EnvVar(provider)}
	}
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// Credentials builds a credential store from the api_keys section.
func (c *Config) Credentials() *Credentials {
	return NewCredentials(c.APIKeys)
}

var (
	defaultOnce  sync.Once
	defaultCreds *Credentials
)

// InitCredentials sets the process-wide default credentials. Only the first
// call (or first DefaultCredentials call) takes effect; it reports whether
// creds was installed.
func InitCredentials(creds *Credentials) bool {
	installed := false
	defaultOnce.Do(func() {
		defaultCreds = creds
		installed = true
	})
	return installed
}

// DefaultCredentials returns the process-wide credentials, falling back to
// an environment-only store if InitCredentials was never called.
func DefaultCredentials() *Credentials {
	defaultOnce.Do(func() {
		defaultCreds = NewCredentials(nil)
	})
	return defaultCreds
}

// overlay prefers a single provider key over a base store.
type overlay struct {
	provider string
	key      string
	base     session.Credentials
}

func (o overlay) APIKey(provider string) (string, bool) {
	if provider == o.provider && o.key != "" {
		return o.key, true
	}
	if o.base == nil {
		return "", false
	}
	return o.base.APIKey(provider)
}
