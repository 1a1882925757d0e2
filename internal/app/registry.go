// Package app resolves entry-point identifiers ("module:object") to loadable
// application objects, mirroring how an ASGI server turns "main:app" into a
// running application. An identifier that resolves to nothing is a startup
// failure: the caller must exit non-zero before binding any port.
package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/lobbi/launchpad/internal/core/domain"
)

// Factory constructs the application object for an entry point.
type Factory func() (*fiber.App, error)

// Registry maps entry points to application factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register binds an entry point to a factory. Registering the same entry
// point twice is a programming error and panics, like a duplicate symbol.
func (r *Registry) Register(ep domain.EntryPoint, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ep.String()
	if _, exists := r.factories[key]; exists {
		panic(fmt.Sprintf("app: entry point %s registered twice", key))
	}
	r.factories[key] = f
}

// Resolve looks up the entry point and constructs its application object.
func (r *Registry) Resolve(ep domain.EntryPoint) (*fiber.App, error) {
	r.mu.RLock()
	f, ok := r.factories[ep.String()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("entry point %s not found (known: %v)", ep, r.known())
	}
	application, err := f()
	if err != nil {
		return nil, fmt.Errorf("loading entry point %s: %w", ep, err)
	}
	return application, nil
}

func (r *Registry) known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Default is the process-wide registry binaries register into from init.
var Default = NewRegistry()
