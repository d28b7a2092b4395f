package textpipe

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Built-in step names.
const (
	StepClean     Name = "clean"
	StepTransform Name = "transform"
	StepAnalyze   Name = "analyze"
)

// Registry decouples the step names used in configuration from their
// concrete implementations. New steps are added by registering a factory,
// never by branching inside the pipeline, which makes the step set
// extensible by third parties.
//
// A Registry is safe for concurrent use. It is read-mostly: writes happen
// at extension time, lookups on every run, so a single Registry may be
// shared across pipelines.
type Registry struct {
	factories map[Name]StepFactory
	mu        sync.RWMutex
}

// NewRegistry creates a Registry pre-populated with the three built-in
// steps: clean, transform, and analyze. It has no other side effects.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[Name]StepFactory),
	}
	r.Register(StepClean, NewCleanStep)
	r.Register(StepTransform, NewTransformStep)
	r.Register(StepAnalyze, NewAnalyzeStep)
	return r
}

// Register associates a name with a step factory. Re-registering an
// existing name overwrites it (last writer wins) — replacing a built-in
// is a deliberate extension point, not an error.
func (r *Registry) Register(name Name, factory StepFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve returns the factory registered under name. Unknown names return
// an error wrapping ErrUnknownStep that lists the available steps.
func (r *Registry) Resolve(name Name) (StepFactory, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownStep, name, strings.Join(r.Names(), ", "))
	}
	return factory, nil
}

// Names returns the registered step names in sorted order. Used for
// configuration validation and diagnostic output.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	names := make([]Name, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// New resolves name and constructs a step instance with the given
// parameters. Factory errors (missing parameters) pass through unwrapped
// so callers can match *ParamError.
func (r *Registry) New(name Name, params Params) (Step, error) {
	factory, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return factory(params)
}
