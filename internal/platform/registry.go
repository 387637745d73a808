// Package platform resolves social platform upload clients.
package platform

import (
	"fmt"
	"sync"

	"autopost-go/internal/agent"
)

// Factory builds an authenticated client for one platform.
type Factory func(creds agent.Credentials) (agent.PlatformClient, error)

// Registry maps platform names to client factories. Register a factory per
// supported platform; lookups for unregistered platforms fail.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var _ agent.PlatformResolver = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory for a supported platform name. Registering the
// same platform twice replaces the previous factory.
func (r *Registry) Register(platform string, factory Factory) error {
	if err := agent.ValidatePlatform(platform); err != nil {
		return err
	}
	name := agent.NormalizePlatform(platform)
	if factory == nil {
		return fmt.Errorf("factory for %s is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// Client builds an authenticated client for the platform. Lookup is on the
// normalized name, matching how Register keys its factories.
func (r *Registry) Client(platform string, creds agent.Credentials) (agent.PlatformClient, error) {
	r.mu.RLock()
	factory, ok := r.factories[agent.NormalizePlatform(platform)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no client registered for platform: %s", platform)
	}
	return factory(creds)
}

// Platforms returns the registered platform names.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
