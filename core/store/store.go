// Package store defines the storage interface used by docrest resources. Drivers for
// memory, MongoDB and PostgreSQL live in sub packages.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Document is a stored document. The identifier is stored as a string under IDField.
// Embedded lists are []interface{} of documents.
type Document map[string]interface{}

// IDField is the name of the identifier property of all documents and sub-documents
const IDField = "_id"

var (
	// ErrNotFound is returned by drivers when no document matches
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned by Insert when a document with the same identifier exists
	ErrDuplicate = errors.New("duplicate document")
	// ErrUnsupportedFilter is returned by drivers which cannot translate a filter type
	ErrUnsupportedFilter = errors.New("unsupported filter")
)

// NewID returns a new document identifier
func NewID() string {
	return uuid.New().String()
}

// ID returns the identifier of the document
func (d Document) ID() string {
	s, _ := d[IDField].(string)
	return s
}

// SortField is one key of a sort order
type SortField struct {
	Field      string
	Descending bool
}

// Projection is an inclusion list of property names. An empty projection includes everything.
type Projection []string

// FindOptions controls paging, ordering and projection of Find. Nil Skip or Limit
// means no constraint.
type FindOptions struct {
	Skip       *int64
	Limit      *int64
	Sort       []SortField
	Projection Projection
}

// Collection is a collection of documents
type Collection interface {
	// Name returns the name of the collection
	Name() string
	// Find returns all documents matching filter. A nil filter matches everything.
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error)
	// FindOne returns the first document matching filter, or ErrNotFound
	FindOne(ctx context.Context, filter Filter, projection Projection) (Document, error)
	// FindByID returns the document with the given identifier, or ErrNotFound
	FindByID(ctx context.Context, id string) (Document, error)
	// FindOneAndRemove atomically removes and returns the first document matching filter, or ErrNotFound
	FindOneAndRemove(ctx context.Context, filter Filter) (Document, error)
	// Count returns the number of documents matching filter
	Count(ctx context.Context, filter Filter) (int64, error)
	// Insert stores a new document. The document must have an identifier. Returns ErrDuplicate
	// if a document with the same identifier exists.
	Insert(ctx context.Context, document Document) error
	// Save stores a document as a whole, replacing any existing document with the same identifier
	Save(ctx context.Context, document Document) error
}

// Store is a set of named collections
type Store interface {
	// Collection returns the named collection, creating it if necessary
	Collection(ctx context.Context, name string) (Collection, error)
	// Close releases the underlying connections
	Close(ctx context.Context) error
}
