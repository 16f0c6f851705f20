package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/becomeliminal/chat-go-sdk/core"
)

// ModelID names a registered model.
type ModelID struct {
	Provider string
	Model    string
}

func (id ModelID) String() string {
	return id.Provider + "/" + id.Model
}

// Registry maps (provider, model) pairs to backend factories.
// It is populated at startup, typically by each provider package's
// Register function.
type Registry struct {
	mu        sync.RWMutex
	factories map[ModelID]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[ModelID]Factory)}
}

// Register adds or replaces the factory for a model.
func (r *Registry) Register(provider, model string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[ModelID{Provider: provider, Model: model}] = factory
}

// Models lists registered models sorted by provider then model.
func (r *Registry) Models() []ModelID {
	r.mu.RLock()
	ids := make([]ModelID, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Provider != ids[j].Provider {
			return ids[i].Provider < ids[j].Provider
		}
		return ids[i].Model < ids[j].Model
	})
	return ids
}

// Lookup returns the factory for a model or an *core.UnknownModelError.
func (r *Registry) Lookup(provider, model string) (Factory, error) {
	r.mu.RLock()
	factory, ok := r.factories[ModelID{Provider: provider, Model: model}]
	r.mu.RUnlock()
	if ok {
		return factory, nil
	}

	var known []string
	for _, id := range r.Models() {
		if id.Provider == provider {
			known = append(known, id.Model)
		}
	}
	return nil, &core.UnknownModelError{Provider: provider, Model: model, Known: known}
}

// New builds a Session for a registered model, resolving its API key from creds.
func (r *Registry) New(provider, model string, creds Credentials, opts ...Option) (*Session, error) {
	factory, err := r.Lookup(provider, model)
	if err != nil {
		return nil, err
	}

	var apiKey string
	if creds != nil {
		apiKey, _ = creds.APIKey(provider)
	}

	backend, err := factory(apiKey, model)
	if err != nil {
		return nil, fmt.Errorf("create %s/%s backend: %w", provider, model, err)
	}
	return New(provider, model, backend, opts...), nil
}
