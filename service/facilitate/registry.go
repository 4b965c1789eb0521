package facilitate

import (
	"sync"

	"github.com/viant/x"
)

// ParameterTypeIniter lets a facilitator publish the go types of its
// obtainment parameters so tooling can introspect them.
type ParameterTypeIniter interface {
	InitTypes(registry *x.Registry)
}

// Registry holds facilitators keyed by obtainment type.
type Registry struct {
	types        *x.Registry
	facilitators map[string]Facilitator
	mux          sync.RWMutex
}

// Types returns the registry of obtainment parameter types.
func (r *Registry) Types() *x.Registry {
	return r.types
}

// Lookup returns a facilitator by obtainment type, or nil when unknown.
func (r *Registry) Lookup(obtainmentType string) Facilitator {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.facilitators[obtainmentType]
}

// Register registers a facilitator under its name.
func (r *Registry) Register(facilitator Facilitator) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if typer, ok := facilitator.(ParameterTypeIniter); ok {
		typer.InitTypes(r.types)
	}
	r.facilitators[facilitator.Name()] = facilitator
}

// NewRegistry creates a facilitator registry pre-populated with the
// supplied parameter types.
func NewRegistry(goTypes ...*x.Type) *Registry {
	ret := &Registry{
		types:        x.NewRegistry(),
		facilitators: make(map[string]Facilitator),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}
