package provider

import (
	"fmt"
	"sort"
	"sync"
)

// FactoryConfig carries the backend settings a factory needs to build a
// provider. Empty fields fall back to the backend's environment variables.
type FactoryConfig struct {
	APIKey  string
	BaseURL string
	Project string
	Region  string
}

// Factory builds a provider from configuration
type Factory func(cfg FactoryConfig) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes a backend constructible by name. Backends register
// themselves from init.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New builds the named backend.
func New(name string, cfg FactoryConfig) (Provider, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", name, Factories())
	}
	p, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", name, err)
	}
	return p, nil
}

// Factories lists the registered backend names in sorted order
func Factories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds constructed providers by name
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register stores a provider under name, replacing any previous one
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider '%s' not found", name)
	}
	return provider, nil
}

// GetOrCreate returns the registered provider, building and caching it from
// the factory on first use.
func (r *Registry) GetOrCreate(name string, cfg FactoryConfig) (Provider, error) {
	if p, err := r.Get(name); err == nil {
		return p, nil
	}
	p, err := New(name, cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.providers[name]; ok {
		return existing, nil
	}
	r.providers[name] = p
	return p, nil
}

// List returns all registered provider names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
