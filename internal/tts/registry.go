package tts

import (
	"errors"
	"fmt"
	"sync"
)

// Registry caches one engine per language. Engines are created on first use
// and kept until Close.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	engines map[string]Engine
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		engines: make(map[string]Engine),
	}
}

// Get returns the engine for lang, creating it if absent. Concurrent callers
// for the same language share one instance.
func (r *Registry) Get(lang string) (Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[lang]; ok {
		return e, nil
	}

	e, err := r.factory(lang)
	if err != nil {
		return nil, fmt.Errorf("create engine for lang %q: %w", lang, err)
	}
	r.engines[lang] = e

	return e, nil
}

// Len returns the number of cached engines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.engines)
}

// Close releases every cached engine.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for lang, e := range r.engines {
		if err := closeEngine(e); err != nil {
			errs = append(errs, fmt.Errorf("close engine %q: %w", lang, err))
		}
		delete(r.engines, lang)
	}

	return errors.Join(errs...)
}
