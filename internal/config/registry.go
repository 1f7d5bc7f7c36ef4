package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tmkbharathi/LiveCaptions/pkg/audio"
	"github.com/tmkbharathi/LiveCaptions/pkg/stt"
)

// ErrNotRegistered is returned by the Create* methods when no factory is
// registered under the requested name.
var ErrNotRegistered = errors.New("config: implementation not registered")

// EngineFactory constructs an [stt.Engine] from its config entry.
type EngineFactory func(entry EngineEntry) (stt.Engine, error)

// SourceFactory constructs an [audio.Source] from its config entry.
type SourceFactory func(entry SourceEntry) (audio.Source, error)

// Registry maps implementation names to constructors. The main package
// registers the built-in engines and sources at startup; tests register
// mocks.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]EngineFactory
	sources map[string]SourceFactory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]EngineFactory),
		sources: make(map[string]SourceFactory),
	}
}

// RegisterEngine registers factory under name, replacing any previous
// registration.
func (r *Registry) RegisterEngine(name string, factory EngineFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = factory
}

// RegisterSource registers factory under name, replacing any previous
// registration.
func (r *Registry) RegisterSource(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// CreateEngine constructs the engine named by entry.Name.
// Returns [ErrNotRegistered] when no factory matches.
func (r *Registry) CreateEngine(entry EngineEntry) (stt.Engine, error) {
	r.mu.RLock()
	factory, ok := r.engines[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: engine %q", ErrNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSource constructs the source named by entry.Name.
// Returns [ErrNotRegistered] when no factory matches.
func (r *Registry) CreateSource(entry SourceEntry) (audio.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: source %q", ErrNotRegistered, entry.Name)
	}
	return factory(entry)
}
