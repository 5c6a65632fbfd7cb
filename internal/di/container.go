// Package di provides a small named-constructor dependency injection
// container. Reflection-based lookup is deliberately absent: forge's
// wiring graph (Hasher, ActionCache, BuildGraph, Dispatcher, Sandbox,
// Planner, Executor, Telemetry) is small enough that name-based lookup
// covers every caller, and nothing in cmd/ needs to resolve a service
// by its reflect.Type or by tag.
package di

import (
	"fmt"
	"sync"
)

// FactoryFunc creates a service instance using the container for any
// dependencies it needs.
type FactoryFunc func(resolver *Container) (interface{}, error)

// Container is a named-constructor registry with singleton caching and
// circular-dependency detection. The resolver passed to a factory
// carries the in-progress resolution chain, so a factory that
// (transitively) resolves its own name fails with a cycle error
// instead of deadlocking on its own construction.
type Container struct {
	state *state
	// resolving is the chain of names currently under construction by
	// this resolution; nil on the root container handed out by New.
	resolving map[string]bool
}

type state struct {
	mu         sync.RWMutex
	factories  map[string]FactoryFunc
	singletons map[string]interface{}
	creating   map[string]*sync.WaitGroup
}

// New creates an empty Container.
func New() *Container {
	return &Container{state: &state{
		factories:  make(map[string]FactoryFunc),
		singletons: make(map[string]interface{}),
		creating:   make(map[string]*sync.WaitGroup),
	}}
}

// RegisterSingleton registers a factory invoked at most once; the
// first Get call builds the instance and caches it for every
// subsequent Get of the same name.
func (c *Container) RegisterSingleton(name string, factory FactoryFunc) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.factories[name] = factory
}

// RegisterInstance registers an already-constructed value as a
// singleton, useful for values built outside the container (e.g. a
// *config.Config loaded by cmd/root.go before the container exists).
func (c *Container) RegisterInstance(name string, instance interface{}) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.singletons[name] = instance
}

// Get resolves name, building it via its registered factory on first
// use. Concurrent Get calls for the same not-yet-built singleton block
// on the first caller's construction rather than building it twice.
func (c *Container) Get(name string) (interface{}, error) {
	resolving := c.resolving
	if resolving == nil {
		resolving = make(map[string]bool)
	}
	return c.get(name, resolving)
}

// MustGet is Get, panicking on error; used during startup wiring in
// cmd/ where a missing/misconfigured service is a fatal error.
func (c *Container) MustGet(name string) interface{} {
	instance, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return instance
}

func (c *Container) get(name string, resolving map[string]bool) (interface{}, error) {
	if resolving[name] {
		return nil, fmt.Errorf("di: circular dependency detected for service %q", name)
	}

	s := c.state
	s.mu.RLock()
	if instance, ok := s.singletons[name]; ok {
		s.mu.RUnlock()
		return instance, nil
	}
	factory, ok := s.factories[name]
	wg, building := s.creating[name]
	s.mu.RUnlock()

	if building {
		wg.Wait()
		s.mu.RLock()
		instance, built := s.singletons[name]
		s.mu.RUnlock()
		if !built {
			return nil, fmt.Errorf("di: service %q failed to build", name)
		}
		return instance, nil
	}

	if !ok {
		return nil, fmt.Errorf("di: service %q not registered", name)
	}

	myWG := &sync.WaitGroup{}
	myWG.Add(1)
	s.mu.Lock()
	if instance, built := s.singletons[name]; built {
		s.mu.Unlock()
		return instance, nil
	}
	if _, racing := s.creating[name]; racing {
		// another caller claimed construction since the read-locked check
		s.mu.Unlock()
		return c.get(name, resolving)
	}
	s.creating[name] = myWG
	s.mu.Unlock()

	resolving[name] = true
	instance, err := factory(&Container{state: s, resolving: resolving})
	delete(resolving, name)

	s.mu.Lock()
	if err == nil {
		s.singletons[name] = instance
	}
	delete(s.creating, name)
	s.mu.Unlock()
	myWG.Done()

	if err != nil {
		return nil, fmt.Errorf("di: building service %q: %w", name, err)
	}
	return instance, nil
}

// Has reports whether name has a registered factory or instance.
func (c *Container) Has(name string) bool {
	c.state.mu.RLock()
	defer c.state.mu.RUnlock()
	_, hasFactory := c.state.factories[name]
	_, hasInstance := c.state.singletons[name]
	return hasFactory || hasInstance
}
