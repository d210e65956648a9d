package query

import (
	"context"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/store"
)

// QueryHook may rewrite or veto the storage filter before a query is executed. Returning an
// error rejects the request as forbidden.
type QueryHook func(ctx context.Context, filter store.Filter) (store.Filter, error)

// FormatHook transforms a document before it is returned. Returning nil drops the document.
type FormatHook func(ctx context.Context, document store.Document) store.Document

// ParseHook transforms and validates a request body before it is stored. Returning an error
// rejects the request as invalid, returning nil rejects it as forbidden.
type ParseHook func(ctx context.Context, data store.Document, operation core.Operation) (store.Document, error)

// Hooks are the optional hooks of one resource
type Hooks struct {
	Query  QueryHook
	Format FormatHook
	Parse  ParseHook
}
