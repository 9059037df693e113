// Package registry holds the compile-time registration table of fact
// builders. Builders live in top-level packages under builders/ and
// register themselves through the Module interface; the app wires the
// definitive list in internal/app/modules.go.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/factbuild/internal/table"
)

// BuildFunc produces a fact table from already-loaded sources. Builders
// must not mutate the tables in sources; the same loaded source may feed
// several builders in one run.
type BuildFunc func(ctx context.Context, dataRoot string, sources map[string]*table.Table) (*table.Table, error)

// Builder is one registered fact builder.
type Builder struct {
	// Fact is the fact-table name the builder produces.
	Fact string
	Fn   BuildFunc
}

// Module is the interface all builder packages implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps fact names to their builders for one app instance.
type Registry struct {
	builders map[string]*Builder
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{builders: make(map[string]*Builder)}
}

// RegisterBuilder adds a builder. Registering the same fact twice is a
// programmer error and panics, matching startup-time wiring expectations.
func (r *Registry) RegisterBuilder(b *Builder) {
	if b == nil || b.Fact == "" || b.Fn == nil {
		panic("registry: builder must have a fact name and a build function")
	}
	if _, exists := r.builders[b.Fact]; exists {
		panic(fmt.Sprintf("registry: builder for fact %q already registered", b.Fact))
	}
	r.builders[b.Fact] = b
}

// Builder looks up the builder for a fact name.
func (r *Registry) Builder(fact string) (*Builder, error) {
	b, ok := r.builders[fact]
	if !ok {
		return nil, &NotRegisteredError{Fact: fact, Registered: r.Names()}
	}
	return b, nil
}

// Names returns all registered fact names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.builders))
	for name := range r.builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
