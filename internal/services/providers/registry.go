package providers

import (
	"fmt"

	"NFTAppraiser/internal/domain/models"
	domsvc "NFTAppraiser/internal/domain/service"
	"NFTAppraiser/pkg/config"
)

// Registry holds the registered model providers in a stable order.
type Registry struct {
	providers []domsvc.ModelProvider
	byKind    map[models.ModelKind]domsvc.ModelProvider
}

// NewRegistry builds providers for every configured endpoint. An endpoint
// naming an unsupported model kind is a configuration error, rejected here
// before any request is served.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := &Registry{byKind: make(map[models.ModelKind]domsvc.ModelProvider)}
	for _, kind := range models.KnownKinds() {
		url, ok := cfg.Providers.Endpoints[string(kind)]
		if !ok {
			continue
		}
		p := NewHTTPProvider(kind, url, cfg.Providers.Timeout)
		r.register(p)
	}
	for name := range cfg.Providers.Endpoints {
		if !models.IsValidKind(models.ModelKind(name)) {
			return nil, fmt.Errorf("unsupported model kind %q in providers.endpoints", name)
		}
	}
	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no model providers configured")
	}
	return r, nil
}

// NewRegistryFrom builds a registry from explicit providers (used in tests
// and backtesting, where providers are stubs or fixed model versions).
func NewRegistryFrom(ps ...domsvc.ModelProvider) *Registry {
	r := &Registry{byKind: make(map[models.ModelKind]domsvc.ModelProvider)}
	for _, p := range ps {
		r.register(p)
	}
	return r
}

func (r *Registry) register(p domsvc.ModelProvider) {
	if _, dup := r.byKind[p.Kind()]; dup {
		return
	}
	r.providers = append(r.providers, p)
	r.byKind[p.Kind()] = p
}

// All returns the providers in registration order.
func (r *Registry) All() []domsvc.ModelProvider { return r.providers }

// Get returns the provider for a kind, or an error for unsupported kinds.
func (r *Registry) Get(kind models.ModelKind) (domsvc.ModelProvider, error) {
	if !models.IsValidKind(kind) {
		return nil, fmt.Errorf("unsupported model kind %q", kind)
	}
	p, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("model kind %q not registered", kind)
	}
	return p, nil
}
