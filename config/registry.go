// Package config provides handler registries and human-readable pipeline configuration.
package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dcshock/runqueue/pipeline"
)

// named is a concurrency-safe name -> T map.
type named[T any] struct {
	kind  string
	mu    sync.RWMutex
	items map[string]T
}

func (n *named[T]) register(name string, v T) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.items == nil {
		n.items = make(map[string]T)
	}
	n.items[name] = v
}

func (n *named[T]) get(name string) (T, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.items[name]
	return v, ok
}

func (n *named[T]) mustGet(name string) T {
	v, ok := n.get(name)
	if !ok {
		panic(fmt.Sprintf("config: %s %q not registered", n.kind, name))
	}
	return v
}

func (n *named[T]) names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.items))
	for k := range n.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Registry maps names to step handlers: success handlers via Register and
// failure handlers via RegisterCatch. Safe for concurrent use.
type Registry struct {
	steps   named[pipeline.SuccessFunc]
	catches named[pipeline.FailureFunc]
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		steps:   named[pipeline.SuccessFunc]{kind: "step"},
		catches: named[pipeline.FailureFunc]{kind: "catch"},
	}
}

// Register adds a success handler under name. Overwrites any existing registration.
func (r *Registry) Register(name string, fn pipeline.SuccessFunc) { r.steps.register(name, fn) }

// Get returns the success handler for name.
func (r *Registry) Get(name string) (pipeline.SuccessFunc, bool) { return r.steps.get(name) }

// MustGet returns the success handler for name, or panics if not found.
func (r *Registry) MustGet(name string) pipeline.SuccessFunc { return r.steps.mustGet(name) }

// Names returns the registered success handler names, sorted.
func (r *Registry) Names() []string { return r.steps.names() }

// RegisterCatch adds a failure handler under name.
func (r *Registry) RegisterCatch(name string, fn pipeline.FailureFunc) { r.catches.register(name, fn) }

// GetCatch returns the failure handler for name.
func (r *Registry) GetCatch(name string) (pipeline.FailureFunc, bool) { return r.catches.get(name) }

// CatchNames returns the registered failure handler names, sorted.
func (r *Registry) CatchNames() []string { return r.catches.names() }

// SourceFunc produces the initial items of a series' collection.
type SourceFunc func(ctx context.Context) ([]interface{}, error)

// SourceRegistry maps source names (PipelineConfig.Source) to SourceFuncs.
type SourceRegistry struct{ n named[SourceFunc] }

// NewSourceRegistry returns an empty source registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{n: named[SourceFunc]{kind: "source"}}
}

func (r *SourceRegistry) Register(name string, fn SourceFunc) { r.n.register(name, fn) }
func (r *SourceRegistry) Get(name string) (SourceFunc, bool) { return r.n.get(name) }
func (r *SourceRegistry) Names() []string { return r.n.names() }

// ObserverRegistry maps observer names (PipelineConfig.Observers) to observers.
type ObserverRegistry struct{ n named[pipeline.Observer] }

// NewObserverRegistry returns an empty observer registry.
func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{n: named[pipeline.Observer]{kind: "observer"}}
}

func (r *ObserverRegistry) Register(name string, o pipeline.Observer) { r.n.register(name, o) }
func (r *ObserverRegistry) Get(name string) (pipeline.Observer, bool) { return r.n.get(name) }
func (r *ObserverRegistry) Names() []string { return r.n.names() }
