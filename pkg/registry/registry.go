// Package registry maps engine names to adapter constructors and builds
// configured engines from them.
package registry

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/Sternrassler/search-client/pkg/engine"
	"github.com/Sternrassler/search-client/pkg/search"
)

// Registry is a name → adapter constructor table. It is safe for
// concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]search.AdapterConstructor
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{constructors: make(map[string]search.AdapterConstructor)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a constructor under name. Names are case-insensitive and
// registering the same name twice is an error.
func (r *Registry) Register(name string, ctor search.AdapterConstructor) error {
	key := normalize(name)
	if key == "" {
		return fmt.Errorf("engine name is required")
	}
	if ctor == nil {
		return fmt.Errorf("engine %s: constructor is required", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.constructors[key]; ok {
		return fmt.Errorf("engine %s already registered", key)
	}
	r.constructors[key] = ctor
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, ctor search.AdapterConstructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[normalize(name)]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// All iterates name/constructor pairs in name order.
func (r *Registry) All() iter.Seq2[string, search.AdapterConstructor] {
	return func(yield func(string, search.AdapterConstructor) bool) {
		for _, name := range r.Names() {
			r.mu.RLock()
			ctor, ok := r.constructors[name]
			r.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(name, ctor) {
				return
			}
		}
	}
}

// Adapter builds the named adapter from params. An unknown name yields a
// search.ErrLoad error.
func (r *Registry) Adapter(name string, params search.Params) (search.Adapter, error) {
	key := normalize(name)
	r.mu.RLock()
	ctor, ok := r.constructors[key]
	r.mu.RUnlock()
	if !ok {
		return nil, search.NewLoadError("Registry", "Engine '%s' not found", name)
	}
	return ctor(params.Clone())
}

// Create builds an engine for name configured by opts. The adapter is
// constructed from opts.Params, so credential errors surface here.
func (r *Registry) Create(ctx context.Context, name string, opts engine.Options) (*engine.Engine, error) {
	adapter, err := r.Adapter(name, opts.Params)
	if err != nil {
		return nil, err
	}
	return engine.New(ctx, normalize(name), adapter, opts)
}
