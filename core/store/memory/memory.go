// Package memory is an in-memory storage driver. Documents are deep copied on the
// way in and out, so callers never share state with the store.
package memory

import (
	"context"
	"sync"

	"github.com/relabs-tech/docrest/core/store"
)

// Store is an in-memory store.Store
type Store struct {
	mutex       sync.Mutex
	collections map[string]*Collection
}

// New returns a new empty in-memory store
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection implements store.Store
func (s *Store) Collection(ctx context.Context, name string) (store.Collection, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{name: name, documents: make(map[string]store.Document)}
		s.collections[name] = c
	}
	return c, nil
}

// Close implements store.Store
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// Collection is an in-memory store.Collection. Documents are kept in insertion order.
type Collection struct {
	name      string
	mutex     sync.RWMutex
	order     []string
	documents map[string]store.Document
}

// Name implements store.Collection
func (c *Collection) Name() string {
	return c.name
}

// snapshot returns the documents in insertion order. The caller must hold the lock.
func (c *Collection) snapshot() []store.Document {
	docs := make([]store.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, c.documents[id])
	}
	return docs
}

// Find implements store.Collection
func (c *Collection) Find(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	page, _ := store.Apply(c.snapshot(), filter, opts)
	result := make([]store.Document, len(page))
	for i, doc := range page {
		result[i] = doc.Clone()
	}
	return result, nil
}

// FindOne implements store.Collection
func (c *Collection) FindOne(ctx context.Context, filter store.Filter, projection store.Projection) (store.Document, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, doc := range c.snapshot() {
		if store.Matches(filter, doc) {
			return doc.Clone().Project(projection), nil
		}
	}
	return nil, store.ErrNotFound
}

// FindByID implements store.Collection
func (c *Collection) FindByID(ctx context.Context, id string) (store.Document, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	doc, ok := c.documents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc.Clone(), nil
}

// FindOneAndRemove implements store.Collection
func (c *Collection) FindOneAndRemove(ctx context.Context, filter store.Filter) (store.Document, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for i, id := range c.order {
		doc := c.documents[id]
		if store.Matches(filter, doc) {
			delete(c.documents, id)
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			return doc, nil
		}
	}
	return nil, store.ErrNotFound
}

// Count implements store.Collection
func (c *Collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var count int64
	for _, doc := range c.documents {
		if store.Matches(filter, doc) {
			count++
		}
	}
	return count, nil
}

// Insert implements store.Collection
func (c *Collection) Insert(ctx context.Context, document store.Document) error {
	id := document.ID()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.documents[id]; ok {
		return store.ErrDuplicate
	}
	c.documents[id] = document.Clone()
	c.order = append(c.order, id)
	return nil
}

// Save implements store.Collection
func (c *Collection) Save(ctx context.Context, document store.Document) error {
	id := document.ID()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.documents[id]; !ok {
		c.order = append(c.order, id)
	}
	c.documents[id] = document.Clone()
	return nil
}
