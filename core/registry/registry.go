/*Package registry provides the registry of models served by a backend.

A model is a declared schema bound to a storage collection. Schemas are registered
once at startup, the collection of a model is resolved lazily on first use and
cached. Entries are never replaced or removed.
*/
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/relabs-tech/docrest/core/schema"
	"github.com/relabs-tech/docrest/core/store"
)

// Model is a declared schema bound to its storage collection
type Model struct {
	Name       string
	Schema     *schema.Schema
	Collection store.Collection
}

// Registry resolves model names to models
type Registry struct {
	store   store.Store
	mutex   sync.RWMutex
	schemas map[string]*schema.Schema
	models  map[string]*Model
}

// New creates a new registry for models stored in s
func New(s store.Store) *Registry {
	return &Registry{
		store:   s,
		schemas: make(map[string]*schema.Schema),
		models:  make(map[string]*Model),
	}
}

// Register declares a model. It is an error to register the same name twice.
func (r *Registry) Register(s *schema.Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.schemas[s.Name]; ok {
		return fmt.Errorf("model %s already registered", s.Name)
	}
	r.schemas[s.Name] = s
	return nil
}

// Schema returns the declared schema of the named model
func (r *Registry) Schema(name string) (*schema.Schema, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Resolve returns the named model. The collection is opened on the first call, later
// calls return the cached model.
func (r *Registry) Resolve(ctx context.Context, name string) (*Model, error) {
	r.mutex.RLock()
	m, ok := r.models[name]
	r.mutex.RUnlock()
	if ok {
		return m, nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if m, ok := r.models[name]; ok {
		return m, nil
	}
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %s", name)
	}
	collection, err := r.store.Collection(ctx, s.PluralName())
	if err != nil {
		return nil, fmt.Errorf("cannot open collection for model %s: %w", name, err)
	}
	m = &Model{Name: name, Schema: s, Collection: collection}
	r.models[name] = m
	return m, nil
}

// Names returns the names of all registered models in alphabetical order
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
