package registry

import (
	"github.com/Sternrassler/search-client/pkg/adapters/bing"
	"github.com/Sternrassler/search-client/pkg/adapters/duckduckgo"
	"github.com/Sternrassler/search-client/pkg/adapters/dummy"
	"github.com/Sternrassler/search-client/pkg/adapters/fake"
	"github.com/Sternrassler/search-client/pkg/adapters/wikipedia"
	"github.com/Sternrassler/search-client/pkg/search"
)

// Builtin returns a registry holding every adapter shipped with this module.
func Builtin() *Registry {
	r := New()
	for name, ctor := range builtins() {
		r.MustRegister(name, ctor)
	}
	return r
}

func builtins() map[string]search.AdapterConstructor {
	return map[string]search.AdapterConstructor{
		dummy.Name:      dummy.New,
		fake.Name:       fake.New,
		wikipedia.Name:  wikipedia.New,
		bing.Name:       bing.New,
		duckduckgo.Name: duckduckgo.New,
	}
}
