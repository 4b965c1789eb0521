// Package ticket abstracts the external ticketing systems (Jira,
// ServiceNow and alike) the approval criteria poll reads from.  Only the
// fetch side is modelled; ticket lifecycle management belongs to the
// external system.
package ticket

import (
	"context"
	"fmt"
	"sync"
)

// Ticket is a point-in-time snapshot of an external ticket's fields.
type Ticket struct {
	Key    string                 `json:"key"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Provider fetches ticket snapshots from one ticketing system.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, connectorRef, key string) (*Ticket, error)
}

// Registry holds providers keyed by ticketing system name.
type Registry struct {
	providers map[string]Provider
	mux       sync.RWMutex
}

// Lookup returns a provider by name or an error when unknown.
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown ticket provider %q", name)
	}
	return provider, nil
}

// Register registers a provider under its name.
func (r *Registry) Register(provider Provider) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.providers[provider.Name()] = provider
}

// NewRegistry creates a provider registry.
func NewRegistry(providers ...Provider) *Registry {
	ret := &Registry{providers: make(map[string]Provider)}
	for _, provider := range providers {
		ret.Register(provider)
	}
	return ret
}
