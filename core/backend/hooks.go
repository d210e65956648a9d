package backend

import (
	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/query"
)

// HandleResource installs the hooks of the resource with the given path, e.g. "houses/rooms".
//
// The query hook may narrow or veto the storage filter of every read. Returning an error
// aborts the request with 403 Forbidden.
//
// The format hook transforms each document before it is returned. A document for which the
// hook returns nil is dropped from a list, and a single document becomes 403 Forbidden.
//
// The parse hook transforms the body of create and update requests before it is validated
// and stored. Returning an error aborts the request with 400 Bad Request, returning nil with
// 403 Forbidden.
//
// Hooks must be installed before the backend serves requests. Installing hooks twice for the
// same resource is fatal.
func (b *Backend) HandleResource(path string, hooks query.Hooks) {
	r, ok := b.resources[path]
	if !ok {
		logger.FromContext(nil).Fatalf("handle resource for %s: no such resource", path)
	}
	if b.hooks[path] {
		logger.FromContext(nil).Fatalf("hooks for %s already installed", path)
	}
	logger.FromContext(nil).Debugf("install hooks for %s", path)
	b.hooks[path] = true
	r.Helper.SetHooks(hooks)
}
