package postprocessors

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// BuilderFunc creates a PostProcessor from its options.
type BuilderFunc func(opts map[string]any) (driven.PostProcessor, error)

// Stage names a registered processor and the options to build it with.
type Stage struct {
	Name    string
	Options map[string]any
}

// Registry maps processor names to builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]BuilderFunc)}
}

// Register adds a builder. Registering a name twice replaces the builder.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates one processor. Unknown names and rejected options are
// configuration errors.
func (r *Registry) Build(name string, opts map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q", domain.ErrConfiguration, name)
	}
	p, err := builder(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return p, nil
}

// Pipeline builds every stage and chains them in order.
func (r *Registry) Pipeline(stages ...Stage) (*Pipeline, error) {
	processors := make([]driven.PostProcessor, 0, len(stages))
	for _, st := range stages {
		p, err := r.Build(st.Name, st.Options)
		if err != nil {
			return nil, err
		}
		processors = append(processors, p)
	}
	return NewPipeline(processors...), nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
